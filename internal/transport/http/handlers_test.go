package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"lendgate/internal/appdata"
	"lendgate/internal/audit"
	"lendgate/internal/conditions"
	"lendgate/internal/decision"
	"lendgate/internal/domain"
	"lendgate/internal/platform/applock"
	"lendgate/internal/pricing"
	"lendgate/internal/rules"
	"lendgate/internal/rules/cache"
	"lendgate/internal/workflow"
)

// RouterSuite exercises the full HTTP surface against in-memory services so
// route wiring, decoding and error translation are covered end to end.
type RouterSuite struct {
	suite.Suite

	server    *httptest.Server
	ruleStore *rules.InMemoryStore
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditStore := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(auditStore)
	locks := applock.New()
	evaluator := rules.NewEvaluator()

	conditionService, err := conditions.NewService(conditions.NewInMemoryStore(), evaluator,
		conditions.WithAuditPublisher(publisher))
	s.Require().NoError(err)

	s.ruleStore = rules.NewInMemoryStore()
	versionCache := cache.NewInMemoryCache(0)
	engine, err := rules.NewEngine(s.ruleStore, conditionService,
		rules.WithEvaluator(evaluator),
		rules.WithAuditPublisher(publisher))
	s.Require().NoError(err)
	lifecycle := rules.NewLifecycle(s.ruleStore, versionCache, publisher, logger)

	defs, err := workflow.LoadDefinitions()
	s.Require().NoError(err)

	workflowStore := workflow.NewInMemoryStore()
	tasks, err := workflow.NewTaskService(defs, workflowStore, locks,
		workflow.WithTaskAuditPublisher(publisher))
	s.Require().NoError(err)

	dataService := appdata.NewService(appdata.NewInMemoryStore())
	aggregator, err := decision.NewAggregator(decision.NewInMemoryStore(), locks,
		decision.WithAuditPublisher(publisher))
	s.Require().NoError(err)

	prereqs := workflow.NewPrerequisiteChecker(defs, workflowStore, conditionService, dataService, aggregator)
	stateMachine, err := workflow.NewStateMachine(defs, workflowStore, prereqs, tasks, locks,
		workflow.WithAuditPublisher(publisher))
	s.Require().NoError(err)

	pricer := pricing.NewEngine()

	router := NewRouter(Handlers{
		Rules:      NewRulesHandler(engine, lifecycle, logger),
		Conditions: NewConditionsHandler(conditionService, logger),
		Workflow:   NewWorkflowHandler(stateMachine, tasks, logger),
		Decisions:  NewDecisionsHandler(aggregator, engine, pricer, conditionService, logger),
		Pricing:    NewPricingHandler(pricer),
		AppData:    NewAppDataHandler(dataService, conditionService, stateMachine, logger),
		Audit:      NewAuditHandler(auditStore),
	}, logger)

	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)
}

func (s *RouterSuite) do(method, path, actor string, body any) (*http.Response, map[string]any) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().NoError(resp.Body.Close())
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (s *RouterSuite) publishDSCRRules() {
	status, _ := s.post("/rules/dscr-standard/versions", map[string]any{
		"version": "2026.1",
		"rules": []map[string]any{{
			"id":   "DSCR_MIN",
			"name": "Minimum DSCR",
			"condition": map[string]any{
				"type":     "SIMPLE",
				"field":    "dscr.ratio",
				"operator": "gte",
				"value":    0.75,
			},
			"onPass": map[string]any{"result": "PASS"},
			"onFail": map[string]any{
				"result": "FAIL",
				"createCondition": map[string]any{
					"code":        "DSCR_SHORTFALL",
					"category":    "PTD",
					"description": "Provide updated rent roll",
				},
			},
			"severity": "BLOCKING",
			"active":   true,
		}},
	})
	s.Require().Equal(http.StatusCreated, status)
}

func (s *RouterSuite) post(path string, body any) (int, map[string]any) {
	resp, decoded := s.do(http.MethodPost, path, "uw-1", body)
	return resp.StatusCode, decoded
}

func (s *RouterSuite) TestHealthz() {
	resp, _ := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusNoContent, resp.StatusCode)
}

func (s *RouterSuite) TestEvaluateWithoutActiveVersionFailsClosed() {
	status, body := s.post("/rules/evaluate", map[string]any{
		"applicationId": "app-1",
		"ruleSet":       "never-published",
		"data":          map[string]any{},
	})
	s.Equal(http.StatusInternalServerError, status)
	s.Equal("invalid_config", body["error"])
}

func (s *RouterSuite) TestEvaluateFailingRuleCreatesCondition() {
	s.publishDSCRRules()

	status, body := s.post("/rules/evaluate", map[string]any{
		"applicationId": "app-1",
		"ruleSet":       "dscr-standard",
		"data":          map[string]any{"dscr": map[string]any{"ratio": 0.60}},
	})
	s.Require().Equal(http.StatusOK, status)
	s.Equal(string(domain.ResultDenied), body["overall"])

	resp, listBody := s.do(http.MethodGet, "/applications/app-1/conditions", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Len(listBody["conditions"], 1)
}

func (s *RouterSuite) TestConditionLifecycleOverHTTP() {
	status, created := s.post("/applications/app-2/conditions", map[string]any{
		"code":     "INSURANCE_BINDER",
		"category": "PTC",
	})
	s.Require().Equal(http.StatusCreated, status)
	conditionID := created["id"].(string)

	status, cleared := s.post("/conditions/"+conditionID+"/clear", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(string(domain.ConditionCleared), cleared["status"])

	// Double clear is an invalid transition.
	status, errBody := s.post("/conditions/"+conditionID+"/clear", nil)
	s.Equal(http.StatusUnprocessableEntity, status)
	s.Equal("precondition_failed", errBody["error"])
}

func (s *RouterSuite) TestStateChangeWithoutActorRejected() {
	resp, body := s.do(http.MethodPost, "/applications/app-3/workflow/advance", "",
		map[string]any{"target": "STARTED"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("bad_request", body["error"])
}

func (s *RouterSuite) TestWorkflowAdvanceAndTaskFlow() {
	status, entry := s.post("/applications/app-4/workflow/advance", map[string]any{"target": "STARTED"})
	s.Require().Equal(http.StatusOK, status)
	s.Equal("STARTED", entry["milestone"])

	status, _ = s.post("/applications/app-4/workflow/advance", map[string]any{"target": "APPLICATION"})
	s.Require().Equal(http.StatusOK, status)

	resp, taskBody := s.do(http.MethodGet, "/applications/app-4/tasks", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	tasks := taskBody["tasks"].([]any)
	s.Require().NotEmpty(tasks)

	var taskID string
	for _, raw := range tasks {
		task := raw.(map[string]any)
		if task["code"] == "ORDER_CREDIT" {
			taskID = task["id"].(string)
		}
	}
	s.Require().NotEmpty(taskID)

	status, started := s.post("/tasks/"+taskID+"/start", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(string(domain.TaskInProgress), started["status"])

	status, completed := s.post("/tasks/"+taskID+"/complete", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(string(domain.TaskCompleted), completed["status"])
}

func (s *RouterSuite) TestAdvanceBlockedByPrerequisitesReturns422() {
	status, _ := s.post("/applications/app-5/workflow/advance", map[string]any{"target": "STARTED"})
	s.Require().Equal(http.StatusOK, status)

	// PRE_APPROVED needs a PRE_APPROVAL decision on file.
	status, body := s.post("/applications/app-5/workflow/advance", map[string]any{"target": "PRE_APPROVED"})
	s.Require().Equal(http.StatusUnprocessableEntity, status)
	s.Equal("prerequisites_unmet", body["error"])
	s.NotEmpty(body["unmet"])

	s.Run("explicit override proceeds", func() {
		status, entry := s.post("/applications/app-5/workflow/advance",
			map[string]any{"target": "PRE_APPROVED", "override": true})
		s.Require().Equal(http.StatusOK, status)
		s.Equal("PRE_APPROVED", entry["milestone"])
	})
}

func (s *RouterSuite) TestDataUpdateRunsReactiveLoop() {
	resp, body := s.do(http.MethodPatch, "/applications/app-6/data", "system",
		map[string]any{"fields": map[string]any{"credit_report_received": true}})
	s.Equal(http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	s.Equal(true, data["credit_report_received"])
}

func (s *RouterSuite) TestPricingQuote() {
	status, body := s.post("/pricing/quote", map[string]any{
		"dscr":            1.30,
		"ltv":             62.0,
		"creditScore":     760,
		"propertyType":    "SFR",
		"loanAmountCents": 40_000_000,
	})
	s.Require().Equal(http.StatusOK, status)
	s.Equal(true, body["eligible"])
	s.NotEmpty(body["riskTier"])
}

func (s *RouterSuite) TestDecisionGenerationOverHTTP() {
	s.publishDSCRRules()

	status, body := s.post("/applications/app-7/decisions", map[string]any{
		"type":    "UNDERWRITING",
		"ruleSet": "dscr-standard",
		"data":    map[string]any{"dscr": map[string]any{"ratio": 1.30}},
		"factors": map[string]any{
			"dscr":               1.30,
			"ltv":                62.0,
			"creditScore":        755,
			"propertyValueCents": 85_000_000,
		},
	})
	s.Require().Equal(http.StatusCreated, status)
	s.Equal(string(domain.OutcomeApproved), body["result"])

	resp, latest := s.do(http.MethodGet, "/applications/app-7/decisions/latest", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(body["id"], latest["id"])

	status, reviewed := s.post("/decisions/"+body["id"].(string)+"/review", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("uw-1", reviewed["reviewedBy"])
}

func (s *RouterSuite) TestAuditTrailEndpoint() {
	s.publishDSCRRules()

	status, _ := s.post("/rules/evaluate", map[string]any{
		"applicationId": "app-8",
		"ruleSet":       "dscr-standard",
		"data":          map[string]any{"dscr": map[string]any{"ratio": 1.10}},
	})
	s.Require().Equal(http.StatusOK, status)

	resp, body := s.do(http.MethodGet, "/applications/app-8/audit", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotEmpty(body["events"])
}

func (s *RouterSuite) TestUnknownFieldRejected() {
	status, body := s.post("/pricing/quote", map[string]any{"nonsense": 1})
	s.Equal(http.StatusBadRequest, status)
	s.Equal("bad_request", body["error"])
}

// Interface conformance guards for wiring in main.
var (
	_ RuleEngine       = (*rules.Engine)(nil)
	_ RuleLifecycle    = (*rules.Lifecycle)(nil)
	_ ConditionService = (*conditions.Service)(nil)
	_ WorkflowService  = (*workflow.StateMachine)(nil)
	_ TaskService      = (*workflow.TaskService)(nil)
	_ DecisionService  = (*decision.Aggregator)(nil)
	_ Pricer           = (*pricing.Engine)(nil)
	_ AppDataService   = (*appdata.Service)(nil)
	_ ConditionSweeper = (*conditions.Service)(nil)
	_ AuditReader      = (*audit.InMemoryStore)(nil)
)
