package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/auth"
	"github.com/remiges-tech/batchsched/logger"
	"github.com/remiges-tech/batchsched/wscutils"
)

// AuthMiddleware verifies the scheduler's self-issued bearer tokens via
// auth.Issuer, storing the resolved Principal in the Gin context for
// handlers to read.
type AuthMiddleware struct {
	Issuer *auth.Issuer
	Logger logger.Logger
}

// NewAuthMiddleware builds an AuthMiddleware bound to issuer.
func NewAuthMiddleware(issuer *auth.Issuer, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{Issuer: issuer, Logger: log}
}

// AuthErrorScenario defines a set of constants representing different error scenarios
// that can occur within the AuthMiddleware. These scenarios are used to map specific
// error conditions to message IDs and error codes.
type AuthErrorScenario string

const (
	// TokenMissing indicates an error scenario where the expected authentication token is missing from the request.
	TokenMissing AuthErrorScenario = "TokenMissing"
	// TokenVerificationFailed indicates an error scenario where the authentication token fails verification.
	TokenVerificationFailed AuthErrorScenario = "TokenVerificationFailed"
)

// scenarioToMsgID maps specific AuthErrorScenarios to message IDs.
var scenarioToMsgID = make(map[AuthErrorScenario]int)

// scenarioToErrCode maps specific AuthErrorScenarios to error codes.
var scenarioToErrCode = make(map[AuthErrorScenario]string)

// RegisterAuthMsgID allows the registration of a message ID for a specific AuthErrorScenario.
func RegisterAuthMsgID(scenario AuthErrorScenario, msgID int) {
	scenarioToMsgID[scenario] = msgID
}

// RegisterAuthErrCode allows the registration of an error code for a specific AuthErrorScenario.
func RegisterAuthErrCode(scenario AuthErrorScenario, errCode string) {
	scenarioToErrCode[scenario] = errCode
}

// defaultMsgID holds the default message ID to be used in error responses when an error scenario
// does not have a specifically registered message ID. This provides a fallback mechanism to ensure
// that error responses always have a message ID.
var defaultMsgID int

// defaultErrCode holds the default error code to be used in error responses when an error scenario
// does not have a specifically registered error code. This default code serves as a generic indicator
// of an error in the absence of a more specific code.
var defaultErrCode string = "ROUTER_ERROR"

// SetDefaultMsgID allows external code to set a custom default message ID.
func SetDefaultMsgID(msgID int) {
	defaultMsgID = msgID
}

// SetDefaultErrCode allows external code to set a custom default error code.
func SetDefaultErrCode(errCode string) {
	defaultErrCode = errCode
}

// principalContextKey is the Gin context key holding the verified auth.Principal.
const principalContextKey = "principal"

// MiddlewareFunc returns a gin.HandlerFunc (middleware) that performs bearer
// token validation.
func (a *AuthMiddleware) MiddlewareFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, err := ExtractToken(c.Request.Header.Get("Authorization"))
		if err != nil {
			a.abort(c, TokenMissing)
			return
		}

		principal, err := a.Issuer.Verify(rawToken)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Log(fmt.Sprintf("token verification failed: %v", err))
			}
			a.abort(c, TokenVerificationFailed)
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

func (a *AuthMiddleware) abort(c *gin.Context, scenario AuthErrorScenario) {
	msgID, ok := scenarioToMsgID[scenario]
	if !ok {
		msgID = defaultMsgID
	}
	errCode, ok := scenarioToErrCode[scenario]
	if !ok {
		errCode = defaultErrCode
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, wscutils.NewErrorResponse(msgID, errCode))
}

// PrincipalFromContext returns the verified Principal stored by
// AuthMiddleware, or false if the request was never authenticated.
func PrincipalFromContext(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return auth.Principal{}, false
	}
	principal, ok := v.(auth.Principal)
	return principal, ok
}

// ExtractToken extracts the token from the Authorization header.
func ExtractToken(headerValue string) (string, error) {
	const prefix = "Bearer "

	if !strings.HasPrefix(headerValue, prefix) {
		return "", fmt.Errorf("missing or incorrect Authorization header format")
	}

	token := strings.TrimPrefix(headerValue, prefix)
	if token == "" {
		return "", fmt.Errorf("missing token in Authorization header")
	}

	return token, nil
}
