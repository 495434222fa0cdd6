package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storytime/internal/domain"
	"storytime/internal/service"
)

type registerRequest struct {
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type emailRequest struct {
	Email string `json:"email" form:"email"`
}

type passwordRequest struct {
	Password        string `json:"password" form:"password"`
	CurrentPassword string `json:"current_password" form:"current_password"`
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" form:"first_name"`
	LastName  *string `json:"last_name" form:"last_name"`
	Email     *string `json:"email" form:"email"`
}

type languagesRequest struct {
	LanguageIDs []int64 `json:"languageIds"`
}

type storyRequest struct {
	StoryID string `json:"storyId" form:"storyId"`
}

type ProfileResponse struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Languages []int64 `json:"languages"`
}

type CatalogTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bindBody(c, &req) {
		return
	}

	if err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registered successfully. Please check your mail to verify the account."})
}

func (h *Handler) verifyEmail(c *gin.Context) {
	outcome, err := h.accounts.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if outcome == service.VerifyOutcomeAlreadyVerified {
		c.JSON(http.StatusOK, gin.H{"message": "Email is already verified. Please log in."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Email is verified. Please log in."})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bindBody(c, &req) {
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"token":      session.Token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) refreshSession(c *gin.Context) {
	session, err := h.accounts.RefreshSession(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) catalogToken(c *gin.Context) {
	cred, err := h.catalog.ClientCredential(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"catalogToken": CatalogTokenResponse{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
		ExpiresIn:   cred.ExpiresIn,
	}})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindBody(c, &req) {
		return
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset link sent successfully, please check your email."})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req passwordRequest
	if !bindBody(c, &req) {
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully, please login."})
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.profiles.Profile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profileData": ProfileResponse{
		ID:        profile.ID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Email:     profile.Email,
		Languages: profile.Languages,
	}})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindBody(c, &req) {
		return
	}

	update := domain.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	if err := h.profiles.UpdateProfile(c.Request.Context(), currentUser(c).ID, update); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Updated successfully."})
}

func (h *Handler) updatePreferredLanguages(c *gin.Context) {
	var req languagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "languageIds must be a list of language ids."})
		return
	}

	if err := h.profiles.UpdatePreferredLanguages(c.Request.Context(), currentUser(c).ID, req.LanguageIDs); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Preferred language updated successfully."})
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req passwordRequest
	if !bindBody(c, &req) {
		return
	}

	if err := h.profiles.UpdatePassword(c.Request.Context(), currentUser(c).ID, req.Password, req.CurrentPassword); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully!"})
}

func (h *Handler) saveStory(c *gin.Context) {
	var req storyRequest
	if !bindBody(c, &req) {
		return
	}

	if err := h.profiles.SaveStory(c.Request.Context(), currentUser(c).ID, req.StoryID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Story saved successfully."})
}

func (h *Handler) removeStory(c *gin.Context) {
	var req storyRequest
	if !bindBody(c, &req) {
		return
	}

	if err := h.profiles.RemoveStory(c.Request.Context(), currentUser(c).ID, req.StoryID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Story deleted successfully!"})
}

func (h *Handler) library(c *gin.Context) {
	stories, err := h.profiles.Stories(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stories": stories})
}
