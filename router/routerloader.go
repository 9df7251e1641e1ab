package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/auth"
	"github.com/remiges-tech/batchsched/logger"
)

const (
	timeout = 60 * time.Second
)

// loggerRequestAdapter lets any logger.Logger back the LogRequest
// middleware's RequestLogger interface, so SetupRouter doesn't need to know
// whether it's been handed a LogHarbour, console, or file logger.
type loggerRequestAdapter struct {
	l logger.Logger
}

func (a loggerRequestAdapter) Log(info RequestInfo) {
	a.l.Log(fmt.Sprintf("%s %s -> %d (%s)", info.Method, info.Path, info.StatusCode, info.Duration))
}

// SetupRouter builds the Gin engine with the scheduler's global middleware
// stack: request logging, panic recovery, then a request timeout bounding
// every handler, in that order per TimeoutMiddleware's documented ordering
// requirement. Bearer-token verification is applied selectively by the
// caller, per the HTTP surface's mix of public (/token, /health, /stats,
// /v1/*) and authenticated routes, via AuthMiddleware.MiddlewareFunc() on a
// route group.
func SetupRouter(l logger.Logger) (*gin.Engine, error) {
	r := gin.New()
	if l != nil {
		r.Use(LogRequest(loggerRequestAdapter{l: l}))
	}
	r.Use(gin.Recovery())
	r.Use(TimeoutMiddleware(timeout))
	return r, nil
}

// LoadAuthMiddleware builds an AuthMiddleware around a freshly constructed
// auth.Issuer, bound to the scheduler's own signing key rather than an
// external identity provider.
func LoadAuthMiddleware(secretKey, algorithm string, expirationMinutes int, l logger.Logger) (*AuthMiddleware, error) {
	issuer, err := auth.NewIssuer(secretKey, algorithm, expirationMinutes)
	if err != nil {
		return nil, err
	}
	return NewAuthMiddleware(issuer, l), nil
}
