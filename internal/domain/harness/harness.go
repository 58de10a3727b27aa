// Package harness bundles the services a scenario can reach and runs
// scenarios against them.
package harness

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/scenariokit/harness/internal/domain/auth"
	"github.com/scenariokit/harness/internal/domain/client"
	"github.com/scenariokit/harness/internal/domain/config"
	"github.com/scenariokit/harness/internal/domain/mock"
	"github.com/scenariokit/harness/internal/domain/sandbox"
	"github.com/scenariokit/harness/internal/domain/shared"
)

// Harness is the explicit dependency bundle handed to every scenario.
type Harness struct {
	Config   *config.Config
	Settings config.Settings
	Env      *config.Env
	Context  *shared.Store
	Files    *sandbox.Store
	HTTP     *client.RestClient
	SOAP     *client.SOAPClient
	Auth     *auth.Acquirer
	Mocks    *mock.Manager
	Logger   *ScriptLogger
	Prompter *Prompter

	// RESTServer and SOAPServer are the mock handles scripts see as
	// restTestServer and soapTestServer.
	RESTServer *mock.Server
	SOAPServer *mock.Server

	// ScriptKey names the directory under the data root that this run's
	// files are saved into. The runner sets it before each scenario.
	ScriptKey string
}

// Options supplies the pieces New cannot derive on its own. Nil fields get
// defaults: empty config, process environment, a fresh context, stdin/stdout.
type Options struct {
	Config  *config.Config
	Env     *config.Env
	Context *shared.Store
	In      io.Reader
	Out     io.Writer
}

// New resolves settings and wires every service.
func New(opts Options) (*Harness, error) {
	if opts.Config == nil {
		opts.Config = config.New(nil)
	}
	if opts.Env == nil {
		opts.Env = config.NewEnv()
	}
	if opts.Context == nil {
		opts.Context = shared.NewStore()
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	settings, err := opts.Config.Settings()
	if err != nil {
		return nil, err
	}
	files, err := sandbox.New(settings.DataDir)
	if err != nil {
		return nil, err
	}

	hc := client.NewHTTPClient(client.Options{
		Timeout:            settings.HTTPTimeout,
		MaxBodyLogSize:     settings.MaxBodyLogSize,
		InsecureSkipVerify: settings.InsecureSkipVerify,
	})
	mocks := mock.NewManager(settings.MockHost)

	return &Harness{
		Config:     opts.Config,
		Settings:   settings,
		Env:        opts.Env,
		Context:    opts.Context,
		Files:      files,
		HTTP:       client.NewRestClient(hc),
		SOAP:       client.NewSOAPClient(hc),
		Auth:       auth.NewAcquirer(hc),
		Mocks:      mocks,
		Logger:     NewScriptLogger(),
		Prompter:   NewPrompter(opts.In, opts.Out),
		RESTServer: mocks.REST(),
		SOAPServer: mocks.SOAP(),
	}, nil
}

// SaveFile stores raw text as <ScriptKey>/<name>.
func (h *Harness) SaveFile(name, content string, overwrite bool) (string, error) {
	return h.Files.SaveText(h.scoped(name), content, overwrite)
}

// SaveJSON stores v as <ScriptKey>/<name>.json.
func (h *Harness) SaveJSON(name string, v any, pretty, overwrite bool) (string, error) {
	return h.Files.SaveJSON(h.scoped(name), v, pretty, overwrite)
}

// SaveXML stores serialized XML as <ScriptKey>/<name>.xml.
func (h *Harness) SaveXML(name, xml string, overwrite bool) (string, error) {
	return h.Files.SaveXML(h.scoped(name), xml, overwrite)
}

// ReadFile reads name relative to the data root, so the paths returned by
// the Save methods can be passed back unchanged.
func (h *Harness) ReadFile(name string) (string, error) {
	return h.Files.Read(name)
}

func (h *Harness) scoped(name string) string {
	if h.ScriptKey == "" {
		return name
	}
	return path.Join(h.ScriptKey, name)
}

// Close stops any mock servers still running.
func (h *Harness) Close(ctx context.Context) error {
	return h.Mocks.StopAll(ctx)
}
