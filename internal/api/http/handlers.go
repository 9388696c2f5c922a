package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/installer"
	"github.com/GriffinCanCode/BundleOS/backend/internal/installd"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	data      *bundle.DataMgr
	installer *installer.Installer
	daemon    *installd.Installd
	hm        *HandlerMetrics
}

// NewHandlers creates a new handler set.
func NewHandlers(data *bundle.DataMgr, inst *installer.Installer, daemon *installd.Installd, hm *HandlerMetrics) *Handlers {
	return &Handlers{data: data, installer: inst, daemon: daemon, hm: hm}
}

// Root handles health check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Bundle Manager Service (Go)",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"bundles": h.data.Count(),
	})
}

// statusOf maps a domain error chain to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrBundleNotFound),
		errors.Is(err, types.ErrModuleNotFound),
		errors.Is(err, types.ErrAbilityNotFound),
		errors.Is(err, types.ErrExtensionNotFound),
		errors.Is(err, types.ErrUserNotInstalled):
		return http.StatusNotFound
	case errors.Is(err, types.ErrBadProfile),
		errors.Is(err, types.ErrProfilePropCheck),
		errors.Is(err, types.ErrInstalldParam),
		errors.Is(err, types.ErrVersionDowngrade),
		errors.Is(err, types.ErrModuleExists):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotRemovable):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{
		"success": false,
		"code":    types.CodeOf(err).String(),
		"error":   err.Error(),
	})
}

func userIDQuery(c *gin.Context) int32 {
	raw := c.DefaultQuery("userId", strconv.Itoa(types.UserIDAny))
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return types.UserIDAny
	}
	return int32(v)
}

func flagsQuery(c *gin.Context) types.GetFlag {
	raw := c.DefaultQuery("flags", "0")
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return types.GetBundleDefault
	}
	return types.GetFlag(v)
}

// InstallBundle installs a package from a path on the device.
func (h *Handlers) InstallBundle(c *gin.Context) {
	var req struct {
		Path         string `json:"path" binding:"required"`
		UserID       *int32 `json:"userId"`
		PreInstalled bool   `json:"preInstalled"`
		SystemApp    bool   `json:"systemApp"`
		APL          string `json:"apl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	userID := int32(types.DefaultUserID)
	if req.UserID != nil {
		userID = *req.UserID
	}

	defer h.hm.TrackInstallerOperation("install")()
	name, err := h.installer.Install(req.Path, installer.Params{
		UserID:       userID,
		PreInstalled: req.PreInstalled,
		SystemApp:    req.SystemApp,
		APL:          req.APL,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bundle":  name,
		"user_id": userID,
	})
}

// UninstallBundle removes a bundle for one user.
func (h *Handlers) UninstallBundle(c *gin.Context) {
	name := c.Param("name")
	userID := userIDQuery(c)
	if userID == types.UserIDAny {
		userID = types.DefaultUserID
	}

	defer h.hm.TrackInstallerOperation("uninstall")()
	if err := h.installer.Uninstall(name, userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bundle": name})
}

// UninstallModule removes one module from a bundle.
func (h *Handlers) UninstallModule(c *gin.Context) {
	name := c.Param("name")
	module := c.Param("module")
	userID := userIDQuery(c)
	if userID == types.UserIDAny {
		userID = types.DefaultUserID
	}

	defer h.hm.TrackInstallerOperation("uninstall_module")()
	if err := h.installer.UninstallModule(name, module, userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bundle": name, "module": module})
}

// ListBundles returns all installed bundles visible to a user.
func (h *Handlers) ListBundles(c *gin.Context) {
	defer h.hm.TrackDataOperation("list")()
	infos := h.data.GetAllBundleInfos(flagsQuery(c), userIDQuery(c))
	c.JSON(http.StatusOK, gin.H{
		"bundles": infos,
		"count":   len(infos),
	})
}

// GetBundle returns one bundle's projection.
func (h *Handlers) GetBundle(c *gin.Context) {
	defer h.hm.TrackDataOperation("get")()
	info, err := h.data.GetBundleInfo(c.Param("name"), flagsQuery(c), userIDQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bundle": info})
}

// QueryAbilities matches declared skills against an intent-like query.
func (h *Handlers) QueryAbilities(c *gin.Context) {
	var want types.Want
	if err := c.ShouldBindJSON(&want); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}
	defer h.hm.TrackDataOperation("query_abilities")()
	matches := h.data.QueryAbilities(want, userIDQuery(c))
	c.JSON(http.StatusOK, gin.H{"abilities": matches, "count": len(matches)})
}

// QueryExtensions matches extension skills against a query.
func (h *Handlers) QueryExtensions(c *gin.Context) {
	var want types.Want
	if err := c.ShouldBindJSON(&want); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}
	defer h.hm.TrackDataOperation("query_extensions")()
	matches := h.data.QueryExtensions(want, userIDQuery(c))
	c.JSON(http.StatusOK, gin.H{"extensions": matches, "count": len(matches)})
}

// GetBundleStats reports the five-element disk usage vector.
func (h *Handlers) GetBundleStats(c *gin.Context) {
	name := c.Param("name")
	userID := userIDQuery(c)
	if userID == types.UserIDAny {
		userID = types.DefaultUserID
	}
	if _, ok := h.data.Get(name); !ok {
		fail(c, types.ErrBundleNotFound)
		return
	}

	defer h.hm.TrackDaemonOperation("get_bundle_stats")()
	stats, err := h.daemon.GetBundleStats(name, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
		"vector":  stats.Vector(),
	})
}

// CleanBundleCache clears a bundle's cache directories for one user.
func (h *Handlers) CleanBundleCache(c *gin.Context) {
	name := c.Param("name")
	userID := userIDQuery(c)
	if userID == types.UserIDAny {
		userID = types.DefaultUserID
	}

	defer h.hm.TrackDaemonOperation("clean_cache")()
	if err := h.installer.CleanCache(name, userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bundle": name})
}

// SetBundleEnabled flips a bundle's enabled flag for one user.
func (h *Handlers) SetBundleEnabled(c *gin.Context) {
	var req struct {
		UserID  *int32 `json:"userId" binding:"required"`
		Enabled *bool  `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.data.SetApplicationEnabled(c.Param("name"), *req.UserID, *req.Enabled); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": *req.Enabled})
}

// GetBundleEnabled reports a bundle's enabled flag for one user.
func (h *Handlers) GetBundleEnabled(c *gin.Context) {
	enabled, err := h.data.IsApplicationEnabled(c.Param("name"), userIDQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": enabled})
}

// SetAbilityEnabled flips one ability's enabled flag for one user.
func (h *Handlers) SetAbilityEnabled(c *gin.Context) {
	var req struct {
		UserID  *int32 `json:"userId" binding:"required"`
		Enabled *bool  `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.data.SetAbilityEnabled(c.Param("name"), c.Param("ability"), *req.UserID, *req.Enabled); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": *req.Enabled})
}

// GetAbilityEnabled reports one ability's enabled flag for one user.
func (h *Handlers) GetAbilityEnabled(c *gin.Context) {
	enabled, err := h.data.IsAbilityEnabled(c.Param("name"), c.Param("ability"), userIDQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": enabled})
}

// SetUpgradeFlag marks a module as pending an OTA refresh.
func (h *Handlers) SetUpgradeFlag(c *gin.Context) {
	var req struct {
		Flag *int32 `json:"flag" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.data.SetModuleUpgradeFlag(c.Param("name"), c.Param("module"), *req.Flag); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "flag": *req.Flag})
}

// GetUpgradeFlag reads a module's pending-upgrade flag.
func (h *Handlers) GetUpgradeFlag(c *gin.Context) {
	flag, err := h.data.GetModuleUpgradeFlag(c.Param("name"), c.Param("module"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "flag": flag})
}

// AddSandbox records a sandboxed clone of a bundle.
func (h *Handlers) AddSandbox(c *gin.Context) {
	var info types.SandboxPersistentInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.data.AddSandboxInfo(c.Param("name"), info); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appIndex": info.AppIndex})
}

// RemoveSandbox drops a sandboxed clone by user and app index.
func (h *Handlers) RemoveSandbox(c *gin.Context) {
	appIndex, err := strconv.ParseInt(c.Param("index"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid app index"})
		return
	}

	if err := h.data.RemoveSandboxInfo(c.Param("name"), userIDQuery(c), int32(appIndex)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListSandboxes lists the sandboxed clones of a bundle for one user.
func (h *Handlers) ListSandboxes(c *gin.Context) {
	infos, err := h.data.SandboxInfos(c.Param("name"), userIDQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sandboxes": infos, "count": len(infos)})
}

// GetDependentModules returns the transitive dependency closure of one
// module.
func (h *Handlers) GetDependentModules(c *gin.Context) {
	r, ok := h.data.Get(c.Param("name"))
	if !ok {
		fail(c, types.ErrBundleNotFound)
		return
	}
	deps := r.GetAllDependentModuleNames(c.Param("module"))
	c.JSON(http.StatusOK, gin.H{"modules": deps, "count": len(deps)})
}
