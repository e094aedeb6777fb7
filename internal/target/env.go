package target

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0x6d61/sqltarget/internal/detector"
	"github.com/0x6d61/sqltarget/internal/engine"
	"github.com/0x6d61/sqltarget/internal/prompt"
	"github.com/0x6d61/sqltarget/internal/session"
)

const (
	sessionFileName = "session.sqlite"
	targetFileName  = "target.txt"

	// resultsFileLayout is lower-cased after formatting, e.g.
	// results-10182026_0304pm.csv.
	resultsFileLayout = "results-01022006_0304PM.csv"
)

var resultsHeader = []string{"Target URL", "Place", "Parameter", "Techniques"}

// StoreOpener opens the session store at path for a target.
type StoreOpener func(path, target string) (session.Store, error)

// Env owns the per-target resources of a run: output directories, the
// session store and, with several targets, the shared results file.
type Env struct {
	// OutputRoot is the directory holding one subdirectory per target host.
	OutputRoot string
	// CmdLine holds the options as given on the command line. They are
	// restored before each target in multi-target mode.
	CmdLine *engine.RunConfig

	Resolver  *Resolver
	Prompt    prompt.Provider
	Logger    *slog.Logger
	OpenStore StoreOpener

	now         func() time.Time
	store       session.Store
	results     *os.File
	resultsCSV  *csv.Writer
	resultsPath string
}

// NewEnv returns an Env writing below outputRoot and asking p for
// confirmations. Session stores are SQLite files.
func NewEnv(outputRoot string, cmdLine *engine.RunConfig, p prompt.Provider, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Env{
		OutputRoot: outputRoot,
		CmdLine:    cmdLine,
		Resolver:   NewResolver(p, logger),
		Prompt:     p,
		Logger:     logger,
		OpenStore: func(path, target string) (session.Store, error) {
			return session.NewSQLiteStore(path, target)
		},
		now: time.Now,
	}
}

// Store returns the session store of the current target, or nil before
// SetupTargetEnv.
func (e *Env) Store() session.Store { return e.store }

// ResultsPath returns the CSV results file name, or "" outside multi-target
// mode.
func (e *Env) ResultsPath() string { return e.resultsPath }

// InitTargetEnv prepares cfg and kb for a new target. In multi-target mode
// it closes the previous session store and drops every piece of state the
// previous target left behind. The POST body is url-decoded; the original
// is kept in cfg.OriginalData.
func (e *Env) InitTargetEnv(cfg *engine.RunConfig, kb *engine.KnowledgeBase) {
	if cfg.MultipleTargets {
		if e.store != nil {
			if err := e.store.Close(); err != nil {
				e.Logger.Warn("closing session store", "error", err)
			}
			e.store = nil
		}

		cfg.ResetParams()
		e.restoreCmdLineOptions(cfg)
		kb.Reset(cfg)
	}

	if cfg.Data != "" {
		cfg.OriginalData = cfg.Data
		cfg.Data = detector.URLDecode(cfg.Data, false, true)
		kb.PostSpaceToPlus = strings.Contains(cfg.OriginalData, "+")
	}
}

// restoreCmdLineOptions undoes option changes made while handling the
// previous target.
func (e *Env) restoreCmdLineOptions(cfg *engine.RunConfig) {
	if e.CmdLine == nil {
		return
	}
	cfg.TmpPath = e.CmdLine.TmpPath
	cfg.DBMS = e.CmdLine.DBMS
	cfg.OS = e.CmdLine.OS
	cfg.Techniques = append([]engine.Technique(nil), e.CmdLine.Techniques...)
	cfg.TestParameters = append([]string(nil), e.CmdLine.TestParameters...)
}

// SetupTargetEnv creates the target's output directory, resolves its
// injection points, opens the session store and resumes stored knowledge.
func (e *Env) SetupTargetEnv(ctx context.Context, cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	if err := e.createTargetDirs(cfg); err != nil {
		return err
	}
	if err := e.Resolver.SetRequestParams(cfg, kb); err != nil {
		return err
	}
	if err := e.setSessionStore(cfg); err != nil {
		return err
	}
	if err := session.NewResumer(e.store, e.Prompt, e.Logger).Resume(ctx, cfg, kb); err != nil {
		return fmt.Errorf("target: resume session: %w", err)
	}
	return e.setResultsFile(cfg)
}

func (e *Env) createTargetDirs(cfg *engine.RunConfig) error {
	if err := os.MkdirAll(e.OutputRoot, 0o755); err != nil {
		tmp, terr := os.MkdirTemp("", "sqltargetoutput")
		if terr != nil {
			return fmt.Errorf("target: create temporary output directory: %w", terr)
		}
		e.Logger.Warn("unable to create default root output directory, using temporary directory instead",
			"path", e.OutputRoot, "error", err, "tmp", tmp)
		e.OutputRoot = tmp
	}

	cfg.OutputPath = filepath.Join(e.OutputRoot, cfg.Hostname())
	if err := os.MkdirAll(cfg.OutputPath, 0o755); err != nil {
		tmp, terr := os.MkdirTemp("", "sqltargetoutput")
		if terr != nil {
			return fmt.Errorf("target: create temporary output directory: %w", terr)
		}
		e.Logger.Warn("unable to create output directory, using temporary directory instead",
			"path", cfg.OutputPath, "error", err, "tmp", tmp)
		cfg.OutputPath = tmp
	}

	if err := os.WriteFile(filepath.Join(cfg.OutputPath, targetFileName), []byte(targetRecord(cfg)), 0o644); err != nil {
		return &engine.MissingPrivilegesError{
			Path:   e.OutputRoot,
			Denied: errors.Is(err, fs.ErrPermission),
			Err:    err,
		}
	}
	return nil
}

// targetRecord renders "URL (METHOD)" followed by the body, if any.
func targetRecord(cfg *engine.RunConfig) string {
	name := cfg.URL
	if name == "" {
		name = cfg.Hostname()
	}
	method := "GET"
	if cfg.Data != "" {
		method = "POST"
	}
	record := fmt.Sprintf("%s (%s)", name, method)
	if cfg.Data != "" {
		record += "\n\n" + cfg.Data
	}
	return record
}

func (e *Env) setSessionStore(cfg *engine.RunConfig) error {
	path := cfg.SessionFile
	if path == "" {
		path = filepath.Join(cfg.OutputPath, sessionFileName)
	}

	if _, err := os.Stat(path); err == nil && cfg.FlushSession {
		if err := os.Remove(path); err != nil {
			return &engine.FilePathError{Path: path, Err: err}
		}
		e.Logger.Info("flushing session file", "path", path)
	}

	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.Logger.Warn("closing session store", "error", err)
		}
		e.store = nil
	}

	store, err := e.OpenStore(path, sessionTarget(cfg))
	if err != nil {
		return &engine.FilePathError{Path: path, Err: err}
	}
	e.store = store
	return nil
}

// sessionTarget names the target in the session store as
// scheme://host:port/path, so stored knowledge outlives changes to the query
// string. A direct connection is named by its host.
func sessionTarget(cfg *engine.RunConfig) string {
	if cfg.URL == "" {
		return cfg.Hostname()
	}
	raw := detector.StripMarks(cfg.URL, engine.MarkChar)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		raw, _, _ = strings.Cut(raw, "#")
		raw, _, _ = strings.Cut(raw, "?")
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	port := u.Port()
	if port == "" {
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(strings.ToLower(u.Hostname()), port), path)
}

func (e *Env) setResultsFile(cfg *engine.RunConfig) error {
	if !cfg.MultipleTargets || e.results != nil {
		return nil
	}

	name := strings.ToLower(e.now().Format(resultsFileLayout))
	path := filepath.Join(e.OutputRoot, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("target: create results file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(resultsHeader); err != nil {
		f.Close()
		return fmt.Errorf("target: write results header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("target: write results header: %w", err)
	}

	e.results, e.resultsCSV, e.resultsPath = f, w, path
	e.Logger.Info("using CSV results file in multiple targets mode", "path", path)
	return nil
}

// AppendResult adds one injection point to the results file. It is a no-op
// outside multi-target mode.
func (e *Env) AppendResult(cfg *engine.RunConfig, inj *engine.InjectionRecord) error {
	if e.resultsCSV == nil {
		return nil
	}
	var techs strings.Builder
	for _, t := range inj.Techniques() {
		techs.WriteString(string(t))
	}
	if err := e.resultsCSV.Write([]string{cfg.URL, inj.Place.String(), inj.Parameter, techs.String()}); err != nil {
		return fmt.Errorf("target: append result: %w", err)
	}
	e.resultsCSV.Flush()
	return e.resultsCSV.Error()
}

// Close releases the session store and the results file.
func (e *Env) Close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
		e.store = nil
	}
	if e.results != nil {
		e.resultsCSV.Flush()
		errs = append(errs, e.resultsCSV.Error(), e.results.Close())
		e.results, e.resultsCSV = nil, nil
	}
	return errors.Join(errs...)
}
