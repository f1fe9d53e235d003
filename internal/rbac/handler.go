package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Handler exposes the administrative JSON API: entity CRUD, status toggles,
// association management, subject queries, and cache controls.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/default", h.defaultRole)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getRole)
			r.Patch("/", h.updateRole)
			r.Delete("/", h.deleteRole)
			r.Post("/restore", h.restoreRole)
			r.Post("/activate", h.setRoleStatus(true))
			r.Post("/deactivate", h.setRoleStatus(false))
			r.Post("/toggle", h.toggleRoleStatus)
			r.Get("/permissions", h.rolePermissions)
			r.Put("/permissions", h.syncRolePermissions)
			r.Post("/permissions/attach", h.attachRolePermissions)
			r.Post("/permissions/detach", h.detachRolePermissions)
		})
	})

	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.listPermissions)
		r.Post("/", h.createPermission)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getPermission)
			r.Patch("/", h.updatePermission)
			r.Delete("/", h.deletePermission)
			r.Post("/restore", h.restorePermission)
			r.Post("/activate", h.setPermissionStatus(true))
			r.Post("/deactivate", h.setPermissionStatus(false))
			r.Post("/toggle", h.togglePermissionStatus)
		})
	})

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.listGroups)
		r.Post("/", h.createGroup)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getGroup)
			r.Patch("/", h.updateGroup)
			r.Delete("/", h.deleteGroup)
			r.Post("/activate", h.setGroupStatus(true))
			r.Post("/deactivate", h.setGroupStatus(false))
			r.Post("/toggle", h.toggleGroupStatus)
		})
	})

	r.Route("/subjects/{id}", func(r chi.Router) {
		r.Delete("/", h.deleteSubject)
		r.Get("/roles", h.subjectRoles)
		r.Put("/roles", h.syncSubjectRoles)
		r.Post("/roles/attach", h.assignSubjectRoles)
		r.Post("/roles/detach", h.removeSubjectRoles)
		r.Get("/permissions", h.subjectPermissions)
		r.Get("/permissions/direct", h.subjectDirectPermissions)
		r.Get("/permissions/via-roles", h.subjectRolePermissions)
		r.Get("/permissions/grouped", h.subjectGroupedPermissions)
		r.Put("/permissions", h.syncSubjectPermissions)
		r.Post("/permissions/attach", h.giveSubjectPermissions)
		r.Post("/permissions/detach", h.revokeSubjectPermissions)
		r.Get("/check", h.checkSubject)
	})

	r.Route("/cache", func(r chi.Router) {
		r.Delete("/", h.flushCache)
		r.Delete("/subjects/{id}", h.clearSubjectCache)
		r.Delete("/roles/{id}", h.clearRoleCache)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.AllRoles(r.Context(), includeInactive(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var params CreateRoleParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) defaultRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.DefaultRole(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.FindRole(r.Context(), strconv.FormatInt(id, 10))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var params UpdateRoleParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) restoreRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.RestoreRole(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) setRoleStatus(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		role, err := h.service.SetRoleStatus(r.Context(), id, active)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, role)
	}
}

func (h *Handler) toggleRoleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.ToggleRoleStatus(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	perms, err := h.service.RolePermissionSet(r.Context(), id, includeInactive(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type associationRequest struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (req associationRequest) roleInputs() []RoleInput {
	inputs := make([]RoleInput, len(req.Roles))
	for i, r := range req.Roles {
		inputs[i] = r
	}
	return inputs
}

func (req associationRequest) permissionInputs() []PermissionInput {
	inputs := make([]PermissionInput, len(req.Permissions))
	for i, p := range req.Permissions {
		inputs[i] = p
	}
	return inputs
}

func (h *Handler) roleAssociation(w http.ResponseWriter, r *http.Request, apply func(roleID int64, perms []PermissionInput) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req associationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := apply(id, req.permissionInputs()); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) syncRolePermissions(w http.ResponseWriter, r *http.Request) {
	h.roleAssociation(w, r, func(roleID int64, perms []PermissionInput) error {
		return h.service.SyncRolePermissions(r.Context(), roleID, perms...)
	})
}

func (h *Handler) attachRolePermissions(w http.ResponseWriter, r *http.Request) {
	h.roleAssociation(w, r, func(roleID int64, perms []PermissionInput) error {
		return h.service.GiveRolePermissions(r.Context(), roleID, perms...)
	})
}

func (h *Handler) detachRolePermissions(w http.ResponseWriter, r *http.Request) {
	h.roleAssociation(w, r, func(roleID int64, perms []PermissionInput) error {
		return h.service.RevokeRolePermissions(r.Context(), roleID, perms...)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.AllPermissions(r.Context(), includeInactive(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var params CreatePermissionParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	perm, err := h.service.FindPermission(r.Context(), strconv.FormatInt(id, 10))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var params UpdatePermissionParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), id, params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) restorePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	perm, err := h.service.RestorePermission(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) setPermissionStatus(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		perm, err := h.service.SetPermissionStatus(r.Context(), id, active)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, perm)
	}
}

func (h *Handler) togglePermissionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	perm, err := h.service.TogglePermissionStatus(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.AllGroups(r.Context(), includeInactive(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var params CreateGroupParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	group, err := h.service.CreateGroup(r.Context(), params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	group, err := h.service.store.GetGroup(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var params UpdateGroupParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	group, err := h.service.UpdateGroup(r.Context(), id, params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) setGroupStatus(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		group, err := h.service.SetGroupStatus(r.Context(), id, active)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, group)
	}
}

func (h *Handler) toggleGroupStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	group, err := h.service.ToggleGroupStatus(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) deleteSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSubject(r.Context(), SubjectID(id)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) subjectRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var (
		roles []Role
		err   error
	)
	if includeInactive(r) {
		roles, err = h.service.subjectRolesAll(r.Context(), id)
	} else {
		roles, err = h.service.subjectRolesActive(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) subjectAssociation(w http.ResponseWriter, r *http.Request, apply func(subject Subject, req associationRequest) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req associationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := apply(SubjectID(id), req); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) syncSubjectRoles(w http.ResponseWriter, r *http.Request) {
	h.subjectAssociation(w, r, func(subject Subject, req associationRequest) error {
		return h.service.SyncRoles(r.Context(), subject, req.roleInputs()...)
	})
}

func (h *Handler) assignSubjectRoles(w http.ResponseWriter, r *http.Request) {
	h.subjectAssociation(w, r, func(subject Subject, req associationRequest) error {
		return h.service.AssignRoles(r.Context(), subject, req.roleInputs()...)
	})
}

func (h *Handler) removeSubjectRoles(w http.ResponseWriter, r *http.Request) {
	h.subjectAssociation(w, r, func(subject Subject, req associationRequest) error {
		return h.service.RemoveRoles(r.Context(), subject, req.roleInputs()...)
	})
}

func (h *Handler) subjectPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var (
		perms []Permission
		err   error
	)
	if includeInactive(r) {
		perms, err = h.service.GetAllPermissionsIncludingInactive(r.Context(), SubjectID(id))
	} else {
		perms, err = h.service.GetAllPermissions(r.Context(), SubjectID(id))
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) subjectDirectPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var (
		perms []Permission
		err   error
	)
	if includeInactive(r) {
		perms, err = h.service.GetDirectPermissionsIncludingInactive(r.Context(), SubjectID(id))
	} else {
		perms, err = h.service.GetDirectPermissions(r.Context(), SubjectID(id))
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) subjectRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	perms, err := h.service.GetPermissionsViaRoles(r.Context(), SubjectID(id))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) subjectGroupedPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	grouped, err := h.service.GetGroupedPermissions(r.Context(), SubjectID(id))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grouped)
}

func (h *Handler) syncSubjectPermissions(w http.ResponseWriter, r *http.Request) {
	h.subjectAssociation(w, r, func(subject Subject, req associationRequest) error {
		return h.service.SyncPermissions(r.Context(), subject, req.permissionInputs()...)
	})
}

func (h *Handler) giveSubjectPermissions(w http.ResponseWriter, r *http.Request) {
	h.subjectAssociation(w, r, func(subject Subject, req associationRequest) error {
		return h.service.GivePermissions(r.Context(), subject, req.permissionInputs()...)
	})
}

func (h *Handler) revokeSubjectPermissions(w http.ResponseWriter, r *http.Request) {
	h.subjectAssociation(w, r, func(subject Subject, req associationRequest) error {
		return h.service.RevokePermissions(r.Context(), subject, req.permissionInputs()...)
	})
}

// checkSubject answers ?role=, ?permission=, or both. The combined form
// passes when either side matches.
func (h *Handler) checkSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	subject := SubjectID(id)
	roleSpec := r.URL.Query().Get("role")
	permSpec := r.URL.Query().Get("permission")
	guard := r.URL.Query().Get("guard")
	if roleSpec == "" && permSpec == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "role or permission parameter required")
		return
	}

	var (
		allowed bool
		err     error
	)
	if roleSpec != "" {
		if guard != "" {
			allowed, err = h.service.HasRole(r.Context(), subject, roleSpec, guard)
		} else {
			allowed, err = h.service.HasRole(r.Context(), subject, roleSpec)
		}
		if err != nil {
			h.respondError(w, err)
			return
		}
	}
	if !allowed && permSpec != "" {
		allowed, err = h.service.HasPermission(r.Context(), subject, permSpec)
		if err != nil {
			h.respondError(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (h *Handler) flushCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.FlushCache(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) clearSubjectCache(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.ClearSubjectCache(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) clearRoleCache(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.ClearRoleCache(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var guardErr *GuardNotFoundError
	var denial *UnauthorizedError
	switch {
	case errors.As(err, &validationErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", validationErr.Error())
	case errors.As(err, &guardErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Guard", guardErr.Error())
	default:
		if !errors.Is(err, ErrNotFound) && !errors.As(err, &denial) {
			h.logger.Error("request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

func includeInactive(r *http.Request) bool {
	v := r.URL.Query().Get("include_inactive")
	return v == "1" || v == "true"
}
