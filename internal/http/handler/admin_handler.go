package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-admin/internal/config"
	"github.com/smallbiznis/valora-admin/internal/service"
)

// AdminHandler exposes the admin account API over gin.
type AdminHandler struct {
	Admins *service.AdminService
	cfg    config.Config
}

// NewAdminHandler creates the handler set.
func NewAdminHandler(admins *service.AdminService, cfg config.Config) *AdminHandler {
	return &AdminHandler{Admins: admins, cfg: cfg}
}

// Create handles POST /admin: multipart account fields plus optional images.
func (h *AdminHandler) Create(c *gin.Context) {
	var req struct {
		Email    string `form:"email" binding:"required,email"`
		Password string `form:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Email and password (min 8 characters) are required")
		return
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		headers = form.File["files"]
	}
	for _, fh := range headers {
		if err := validateImage(fh); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	uploads := make([]service.FileUpload, 0, len(headers))
	openFiles := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range openFiles {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "Could not read uploaded file")
			return
		}
		openFiles = append(openFiles, f)
		uploads = append(uploads, service.FileUpload{Filename: fh.Filename, Content: f})
	}

	admin, err := h.Admins.Create(c.Request.Context(), req.Email, req.Password, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, admin)
}

// SignIn handles POST /admin/signin: password check, then OTP delivery.
func (h *AdminHandler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}

	if err := h.Admins.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"email": req.Email})
}

// ConfirmSignIn handles POST /admin/confirm-signin: OTP check, token issue,
// refresh cookie set.
func (h *AdminHandler) ConfirmSignIn(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and OTP are required")
		return
	}

	pair, err := h.Admins.ConfirmSignIn(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	respond(c, http.StatusOK, gin.H{"token": pair.AccessToken})
}

// RefreshToken handles POST /admin/token using the refresh cookie.
func (h *AdminHandler) RefreshToken(c *gin.Context) {
	refresh, err := c.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		respondMessage(c, http.StatusUnauthorized, "Refresh token missing")
		return
	}

	access, err := h.Admins.RefreshToken(c.Request.Context(), refresh)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"token": access})
}

// SignOut handles POST /admin/signout: validates the cookie and clears it.
func (h *AdminHandler) SignOut(c *gin.Context) {
	refresh, err := c.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		respondMessage(c, http.StatusUnauthorized, "Refresh token missing")
		return
	}

	if err := h.Admins.SignOut(c.Request.Context(), refresh); err != nil {
		respondError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	respond(c, http.StatusOK, gin.H{"message": "Admin signed out successfully"})
}

// List handles GET /admin.
func (h *AdminHandler) List(c *gin.Context) {
	admins, err := h.Admins.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, admins)
}

// GetByID handles GET /admin/:id.
func (h *AdminHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	admin, err := h.Admins.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, admin)
}

// UpdateStatus handles PATCH /admin/status/:id.
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "is_active is required")
		return
	}

	admin, err := h.Admins.UpdateStatus(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, admin)
}

// Update handles PATCH /admin/:id: multipart mutable fields plus optional image.
func (h *AdminHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req struct {
		Email    *string `form:"email" binding:"omitempty,email"`
		Password *string `form:"password" binding:"omitempty,min=8"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid update fields")
		return
	}

	var upload *service.FileUpload
	if fh, err := c.FormFile("file"); err == nil && fh != nil {
		if err := validateImage(fh); err != nil {
			badRequest(c, err.Error())
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "Could not read uploaded file")
			return
		}
		defer f.Close()
		upload = &service.FileUpload{Filename: fh.Filename, Content: f}
	}

	admin, err := h.Admins.Update(c.Request.Context(), id,
		service.UpdateParams{Email: req.Email, Password: req.Password}, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, admin)
}

// Delete handles DELETE /admin/:id.
func (h *AdminHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.Admins.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Admin deleted successfully"})
}

func (h *AdminHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.RefreshCookieName, token,
		int(h.cfg.RefreshTokenTTL.Seconds()), "/admin", "", h.cfg.CookieSecure, true)
}

func (h *AdminHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.RefreshCookieName, "", -1, "/admin", "", h.cfg.CookieSecure, true)
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid id parameter")
		return 0, false
	}
	return id, true
}
