package handler

import (
	"net/http"

	"fundingportal/internal/service"
	"fundingportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type ConfigHandler struct {
	configService service.ConfigService
}

func NewConfigHandler(configService service.ConfigService) *ConfigHandler {
	return &ConfigHandler{configService: configService}
}

func (h *ConfigHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/config", h.Public)
}

// Public returns the configuration the wizard loads on start
// @Summary      Public configuration
// @Tags         config
// @Produce      json
// @Success      200  {object}  response.Response{data=service.PublicConfig}
// @Router       /api/config [get]
func (h *ConfigHandler) Public(c *gin.Context) {
	cfg, err := h.configService.Public(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cfg))
}
