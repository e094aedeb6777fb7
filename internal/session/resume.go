package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cast"

	"github.com/0x6d61/sqltarget/internal/dbms"
	"github.com/0x6d61/sqltarget/internal/engine"
	"github.com/0x6d61/sqltarget/internal/prompt"
)

// Resumer merges stored knowledge into the current run.
type Resumer struct {
	Store  Store
	Prompt prompt.Provider
	Logger *slog.Logger
}

// NewResumer returns a Resumer. A nil logger discards output.
func NewResumer(store Store, p prompt.Provider, logger *slog.Logger) *Resumer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resumer{Store: store, Prompt: p, Logger: logger}
}

// Resume restores stored values into cfg and kb. It must run after the
// parameter universe of cfg has been resolved: stored injection points
// whose location and parameter are not in cfg.Params are dropped.
//
// Scalar knowledge is only applied to fields the current run has not set.
// A stored DBMS or OS that contradicts the operator's declaration replaces
// it only after explicit confirmation.
func (r *Resumer) Resume(ctx context.Context, cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	if err := r.resumeScalars(ctx, cfg, kb); err != nil {
		return err
	}
	if err := r.resumeInjections(ctx, cfg, kb); err != nil {
		return err
	}
	if err := r.resumeDBMS(ctx, cfg, kb); err != nil {
		return err
	}
	return r.resumeOS(ctx, cfg, kb)
}

func (r *Resumer) resumeScalars(ctx context.Context, cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	if len(kb.AbsFilePaths) == 0 {
		if _, err := r.Store.Retrieve(ctx, KeyAbsFilePaths, &kb.AbsFilePaths); err != nil {
			return err
		}
	}
	if kb.Chars == nil {
		var chars engine.Chars
		ok, err := r.Store.Retrieve(ctx, KeyChars, &chars)
		if err != nil {
			return err
		}
		if ok {
			kb.Chars = &chars
		}
	}
	if len(kb.DynamicMarkings) == 0 {
		if _, err := r.Store.Retrieve(ctx, KeyDynamicMarkings, &kb.DynamicMarkings); err != nil {
			return err
		}
	}
	if len(kb.BruteTables) == 0 {
		if _, err := r.Store.Retrieve(ctx, KeyBruteTables, &kb.BruteTables); err != nil {
			return err
		}
	}
	if len(kb.BruteColumns) == 0 {
		if _, err := r.Store.Retrieve(ctx, KeyBruteColumns, &kb.BruteColumns); err != nil {
			return err
		}
	}
	if !kb.XPCmdshellAvailable {
		var raw any
		ok, err := r.Store.Retrieve(ctx, KeyXPCmdshellAvailable, &raw)
		if err != nil {
			return err
		}
		if ok {
			available, cerr := cast.ToBoolE(raw)
			if cerr != nil {
				r.Logger.Debug("ignoring stored capability flag", "key", KeyXPCmdshellAvailable, "error", cerr)
			}
			kb.XPCmdshellAvailable = available
		}
	}
	if cfg.TmpPath == "" {
		if _, err := r.Store.Retrieve(ctx, KeyTmpPath, &cfg.TmpPath); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resumer) resumeInjections(ctx context.Context, cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	var stored []*engine.InjectionRecord
	ok, err := r.Store.Retrieve(ctx, KeyInjections, &stored)
	if err != nil || !ok {
		return err
	}

	for _, inj := range stored {
		if inj == nil {
			continue
		}
		if !cfg.Params.Has(inj.Place, inj.Parameter) {
			r.Logger.Debug("dropping stored injection point not present in the request",
				"place", inj.Place.String(), "parameter", inj.Parameter)
			continue
		}
		if !inj.Restrict(cfg.Techniques) {
			r.Logger.Debug("dropping stored injection point outside the technique restriction",
				"place", inj.Place.String(), "parameter", inj.Parameter)
			continue
		}
		if kb.HasInjection(inj.Place, inj.Parameter) {
			continue
		}
		kb.Injections = append(kb.Injections, inj)
	}
	return nil
}

func (r *Resumer) resumeDBMS(ctx context.Context, cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	var value string
	ok, err := r.Store.Retrieve(ctx, KeyDBMS, &value)
	if err != nil || !ok || strings.TrimSpace(value) == "" {
		return err
	}

	name, versions := dbms.ParseBanner(value)

	if cfg.DBMS == "" {
		if !kb.Fingerprint.SetDBMS(dbms.Canonical(name), versions) {
			r.Logger.Warn("stored back-end DBMS differs from the identified one, keeping the latter",
				"stored", name, "dbms", kb.Fingerprint.DBMS)
			return nil
		}
		r.Logger.Info("resuming back-end DBMS", "dbms", name)
		return nil
	}

	if !dbms.Conflicts(cfg.DBMS, name) {
		kb.Fingerprint.SetDBMS(cfg.DBMS, versions)
		return nil
	}

	message := fmt.Sprintf("you provided '%s' as a back-end DBMS, "+
		"but from a past scan information on the target URL "+
		"the back-end DBMS is assumed to be '%s'. "+
		"Do you want to replace your value with the stored one?", cfg.DBMS, name)
	override, err := prompt.Confirm(r.Prompt, prompt.Question{Message: message, Default: prompt.No})
	if err != nil {
		return err
	}
	if override {
		r.Logger.Info("forcing back-end DBMS from session", "dbms", name)
		cfg.DBMS = name
		kb.Fingerprint.ForceDBMS(dbms.Canonical(name), versions)
	}
	return nil
}

func (r *Resumer) resumeOS(ctx context.Context, cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	var value string
	ok, err := r.Store.Retrieve(ctx, KeyOS, &value)
	if err != nil || !ok || value == "" || value == "None" {
		return err
	}

	r.Logger.Info("resuming back-end DBMS operating system", "os", value)

	if cfg.OS != "" && !strings.EqualFold(cfg.OS, value) {
		message := fmt.Sprintf("you provided '%s' as back-end DBMS operating system, "+
			"but from a past scan information on the target URL "+
			"the back-end DBMS operating system is assumed to be '%s'. "+
			"Do you want to replace your value with the stored one?", cfg.OS, value)
		override, err := prompt.Confirm(r.Prompt, prompt.Question{Message: message, Default: prompt.No})
		if err != nil {
			return err
		}
		if override {
			cfg.OS = value
		}
	} else {
		cfg.OS = value
	}

	kb.Fingerprint.OS = cfg.OS
	return nil
}
