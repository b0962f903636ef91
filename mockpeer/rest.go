package mockpeer

import (
	"io"
	"net/http"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework"

	"github.com/gorilla/mux"
)

// RESTService is the HTTP form of the mock peer.
type RESTService struct {
	router *mux.Router
	logger framework.Logger
}

// NewRESTService creates the handler. A nil logger discards output.
func NewRESTService(logger framework.Logger) *RESTService {
	if logger == nil {
		logger = framework.NullLogger()
	}
	s := &RESTService{router: mux.NewRouter(), logger: logger}
	s.router.HandleFunc("/health", s.health).Methods("GET")
	s.router.HandleFunc("/api/validate", s.validate).Methods("POST")
	s.router.HandleFunc("/api/echo", s.echo).Methods("POST", "PUT")
	s.router.HandleFunc("/api/tools", s.tools).Methods("GET")
	s.router.HandleFunc("/api/tools/{name}", s.callTool).Methods("POST")
	return s
}

func (s *RESTService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Printf("mock peer got %s %s", r.Method, r.URL.Path)
	s.router.ServeHTTP(w, r)
}

func (s *RESTService) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ldvalue.ObjectBuild().
		Set("status", ldvalue.String("ok")).
		Set("version", ldvalue.String(ServerVersion)).
		Build())
}

func (s *RESTService) validate(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	source := body.GetByKey("utlx")
	if !source.IsString() {
		writeError(w, http.StatusBadRequest, "missing required field: utlx")
		return
	}
	writeJSON(w, http.StatusOK, ValidateSource(source.StringValue()).Value())
}

func (s *RESTService) echo(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	w.Header().Set("X-Echo-Method", r.Method)
	writeJSON(w, http.StatusOK, body)
}

func (s *RESTService) tools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ldvalue.ObjectBuild().Set("tools", toolList()).Build())
}

func (s *RESTService) callTool(w http.ResponseWriter, r *http.Request) {
	args, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	params := ldvalue.ObjectBuild().
		Set("name", ldvalue.String(mux.Vars(r)["name"])).
		Set("arguments", args).
		Build()
	result, rpcErr := callTool(params)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, rpcErr.Message)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func readJSONBody(w http.ResponseWriter, r *http.Request) (ldvalue.Value, bool) {
	if r.Body == nil {
		return ldvalue.ObjectBuild().Build(), true
	}
	data, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if len(data) == 0 {
		return ldvalue.ObjectBuild().Build(), true
	}
	var v ldvalue.Value
	if err := v.UnmarshalJSON(data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return ldvalue.Null(), false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v ldvalue.Value) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(v.JSONString()))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ldvalue.ObjectBuild().Set("error", ldvalue.String(message)).Build())
}
