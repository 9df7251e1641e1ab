package inference

import (
	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/auth"
	"github.com/remiges-tech/batchsched/batch"
	"github.com/remiges-tech/batchsched/config"
	"github.com/remiges-tech/batchsched/engine"
	"github.com/remiges-tech/batchsched/logger"
	"github.com/remiges-tech/batchsched/queue"
	"github.com/remiges-tech/batchsched/router"
	"github.com/remiges-tech/batchsched/stats"
	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/remiges-tech/batchsched/wscutils"
)

// Handlers closes over every collaborator the HTTP surface needs; no
// handler here reaches for a package-level global.
type Handlers struct {
	issuer        *auth.Issuer
	credentials   auth.CredentialStore
	queue         *queue.Queue
	store         *taskstore.Store
	stats         *stats.Collector
	dispatcher    *batch.Dispatcher
	engineAdapter engine.Adapter
	log           logger.Logger

	promptMaxLength int
	batchMaxItems   int
	useRealVLLM     bool
	engineModelName string
	batchConfig     config.BatchConfig
}

// Deps bundles the collaborators RegisterRoutes needs, mirroring the fields
// on service.Service without importing that package (avoiding a cycle: the
// service package constructs the router, and this package plugs into it).
type Deps struct {
	Issuer      *auth.Issuer
	AuthMW      *router.AuthMiddleware
	Credentials auth.CredentialStore
	Queue       *queue.Queue
	TaskStore   *taskstore.Store
	Stats       *stats.Collector
	Dispatcher  *batch.Dispatcher
	Engine      engine.Adapter
	Logger      logger.Logger
	Config      *config.Config
}

func init() {
	wscutils.SetMsgIDInvalidJSON(wscutils.MsgIDInvalidJSON)
	wscutils.SetErrCodeInvalidJSON(wscutils.ErrcodeInvalidJSON)
	wscutils.SetDefaultMsgID(wscutils.DefaultMsgID)
	wscutils.SetDefaultErrCode(wscutils.ErrcodeUnknown)

	router.RegisterAuthMsgID(router.TokenMissing, wscutils.MsgIDTokenMissing)
	router.RegisterAuthErrCode(router.TokenMissing, wscutils.ErrcodeTokenMissing)
	router.RegisterAuthMsgID(router.TokenVerificationFailed, wscutils.MsgIDTokenInvalid)
	router.RegisterAuthErrCode(router.TokenVerificationFailed, wscutils.ErrcodeTokenInvalid)
	router.SetDefaultMsgID(wscutils.MsgIDUnauthorized)
	router.SetDefaultErrCode(wscutils.ErrcodeUnauthorized)
}

// RegisterRoutes wires the scheduler's HTTP surface onto r: public routes
// (/token, /health, /stats, /stats/batches, /v1/*) directly, and a
// protected group (/inference/*, /tasks*) behind deps.AuthMW.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	h := &Handlers{
		issuer:        deps.Issuer,
		credentials:   deps.Credentials,
		queue:         deps.Queue,
		store:         deps.TaskStore,
		stats:         deps.Stats,
		dispatcher:    deps.Dispatcher,
		engineAdapter: deps.Engine,
		log:           deps.Logger,

		promptMaxLength: deps.Config.Validation.PromptMaxLength,
		batchMaxItems:   deps.Config.Validation.BatchMaxItems,
		useRealVLLM:     deps.Config.Engine.UseRealVLLM,
		engineModelName: deps.Config.Engine.RealVLLMModel,
		batchConfig:     deps.Config.Batch,
	}

	r.POST("/token", h.tokenHandler)
	r.GET("/health", h.healthHandler)
	r.GET("/stats", h.statsHandler)
	r.GET("/stats/batches", h.statsBatchesHandler)

	r.POST("/v1/chat/completions", h.chatCompletionsHandler)
	r.POST("/v1/completions", h.completionsHandler)
	r.GET("/v1/models", h.modelsHandler)

	protected := r.Group("/")
	protected.Use(deps.AuthMW.MiddlewareFunc())
	protected.POST("/inference/async", h.submitAsyncHandler)
	protected.POST("/inference/batch", h.submitBatchHandler)
	protected.GET("/tasks/:task_id", h.getTaskHandler)
	protected.GET("/tasks", h.listTasksHandler)
}
