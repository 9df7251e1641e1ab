package inference

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/auth"
	"github.com/remiges-tech/batchsched/wscutils"
)

// tokenHandler handles POST /token: form-encoded username/password in,
// a signed bearer token out.
func (h *Handlers) tokenHandler(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	principal, err := auth.VerifyCredentials(h.credentials, username, password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, wscutils.NewErrorResponse(wscutils.MsgIDUnauthorized, wscutils.ErrcodeUnauthorized))
		return
	}

	token, err := h.issuer.Issue(principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wscutils.NewErrorResponse(wscutils.MsgIDInternal, wscutils.ErrcodeInternal))
		return
	}

	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	}))
}
