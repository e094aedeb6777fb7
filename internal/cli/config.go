package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0x6d61/sqltarget/internal/engine"
	"github.com/0x6d61/sqltarget/internal/prompt"
)

const (
	envPrefix        = "SQLTARGET"
	defaultOutputDir = "~/.sqltarget/output"
)

// options are the settings of one run after merging flags, environment
// variables and the config file.
type options struct {
	URL           string
	BulkFile      string
	Direct        string
	Method        string
	Data          string
	Cookie        string
	Agent         string
	Referer       string
	Headers       []string
	ParamDel      string
	CookieDel     string
	TestParameter string
	Technique     string
	DBMS          string
	OS            string
	Session       string
	FlushSession  bool
	OutputDir     string
	TmpPath       string
	Verbose       int
	Output        string
	Format        string
	Batch         bool
	Answers       string
}

// loadOptions reads the settings of cmd. Flags win over SQLTARGET_*
// environment variables, which win over the config file.
func loadOptions(cmd *cobra.Command) (*options, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if cfgFile := v.GetString("config"); cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("config file %q: %w", cfgFile, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	opts := &options{
		URL:           v.GetString("url"),
		BulkFile:      v.GetString("bulk-file"),
		Direct:        v.GetString("direct"),
		Method:        v.GetString("method"),
		Data:          v.GetString("data"),
		Cookie:        v.GetString("cookie"),
		Agent:         v.GetString("user-agent"),
		Referer:       v.GetString("referer"),
		Headers:       v.GetStringSlice("header"),
		ParamDel:      v.GetString("param-del"),
		CookieDel:     v.GetString("cookie-del"),
		TestParameter: v.GetString("test-parameter"),
		Technique:     v.GetString("technique"),
		DBMS:          v.GetString("dbms"),
		OS:            v.GetString("os"),
		Session:       v.GetString("session"),
		FlushSession:  v.GetBool("flush-session"),
		OutputDir:     v.GetString("output-dir"),
		TmpPath:       v.GetString("tmp-path"),
		Verbose:       v.GetInt("verbose"),
		Output:        v.GetString("output"),
		Format:        v.GetString("format"),
		Batch:         v.GetBool("batch"),
		Answers:       v.GetString("answers"),
	}

	for _, p := range []*string{&opts.OutputDir, &opts.Session, &opts.TmpPath, &opts.BulkFile, &opts.Output} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return opts, nil
}

// runConfig builds the command-line RunConfig shared by every target.
func (o *options) runConfig() (*engine.RunConfig, error) {
	cfg := engine.DefaultRunConfig()
	cfg.URL = o.URL
	cfg.Direct = o.Direct
	if o.Method != "" {
		cfg.Method = strings.ToUpper(o.Method)
	}
	cfg.Data = o.Data
	cfg.Cookie = o.Cookie
	cfg.Agent = o.Agent
	cfg.Referer = o.Referer
	cfg.Headers = parseHeaders(o.Headers)
	cfg.ParamDel = o.ParamDel
	cfg.CookieDel = o.CookieDel
	cfg.TestParameters = splitList(o.TestParameter)
	cfg.DBMS = o.DBMS
	cfg.OS = o.OS
	cfg.TmpPath = o.TmpPath
	cfg.SessionFile = o.Session
	cfg.FlushSession = o.FlushSession

	techniques, err := engine.ParseTechniques(o.Technique)
	if err != nil {
		return nil, err
	}
	cfg.Techniques = techniques
	return cfg, nil
}

// targets returns the URLs to resolve: the lines of the bulk file, or the
// single --url value. A direct connection has one target without URL.
func (o *options) targets() ([]string, error) {
	if o.BulkFile == "" {
		if o.URL == "" && o.Direct == "" {
			return nil, nil
		}
		return []string{o.URL}, nil
	}

	f, err := os.Open(o.BulkFile)
	if err != nil {
		return nil, fmt.Errorf("open bulk file: %w", err)
	}
	defer f.Close()
	return readTargets(f)
}

// readTargets reads one URL per line, skipping blank lines and lines
// starting with '#'.
func readTargets(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read bulk file: %w", err)
	}
	return urls, nil
}

// provider answers predefined questions from --answers and asks the
// terminal for the rest.
func (o *options) provider(in io.Reader, out io.Writer, logger *slog.Logger) (prompt.Provider, error) {
	rules, err := prompt.ParseRules(o.Answers)
	if err != nil {
		return nil, err
	}
	return &prompt.Rules{
		Rules: rules,
		Next:  prompt.NewTerminal(in, out, o.Batch, logger),
	}, nil
}

// newLogger maps verbosity 0-3 to the Error, Warn, Info and Debug levels.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	logLevel := slog.LevelError
	switch {
	case verbose >= 3:
		logLevel = slog.LevelDebug
	case verbose >= 2:
		logLevel = slog.LevelInfo
	case verbose >= 1:
		logLevel = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// parseHeaders parses "Name: value" strings. Entries without a colon are
// ignored.
func parseHeaders(rawHeaders []string) []engine.Header {
	var headers []engine.Header
	for _, h := range rawHeaders {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			headers = append(headers, engine.Header{
				Name:  strings.TrimSpace(parts[0]),
				Value: strings.TrimSpace(parts[1]),
			})
		}
	}
	return headers
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
