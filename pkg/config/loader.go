package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader loads service configuration from a filesystem root with deterministic layering.
//
// Conventions:
//
//	<root>/<service>.yaml|yml
//	<root>/env/<env>/<service>.yaml|yml
//
// Merge order (later layers win):
//
//	base -> env -> env-var overrides
//
// Env var overrides use EnvPrefix (default UPPER(service)+"_") and PathDelimiter
// (default "__") for nesting: CHARTD_DATABASE__DSN=x => {"database":{"dsn":"x"}}.
// Values are decoded as YAML scalars, so "true", "3" and "1.5" keep their types.
type Options struct {
	Service string // required (e.g. "chartd")
	Env     string // optional (e.g. "local", "prod")

	// ExplicitPath loads only this file (relative to root unless absolute), then env overrides.
	ExplicitPath string

	DisableEnvOverrides bool
	EnvPrefix           string
	PathDelimiter       string

	MaxFileBytes int64 // default 2 MiB
	MaxDepth     int   // default 32
	MaxEnvVars   int   // default 256

	// Environ overrides os.Environ (tests).
	Environ func() []string

	// Optional warnings hook (nil-safe)
	OnWarn func(code, detail string)
}

type Loader struct {
	rootAbs string
	opts    Options
	reSeg   *regexp.Regexp
}

type Document struct {
	Path     string         `json:"path" yaml:"path"`
	Tier     string         `json:"tier" yaml:"tier"` // base|env|explicit|environ
	LoadedAt time.Time      `json:"loaded_at" yaml:"loaded_at"`
	SHA256   string         `json:"sha256" yaml:"sha256"`
	Data     map[string]any `json:"data" yaml:"data"`
}

type Bundle struct {
	Service  string         `json:"service"`
	Env      string         `json:"env,omitempty"`
	Docs     []Document     `json:"docs"`
	Merged   map[string]any `json:"merged"`
	LoadedAt time.Time      `json:"loaded_at"`
	Report   MergeReport    `json:"report"`
}

var (
	ErrInvalidRoot    = errors.New("config: invalid root")
	ErrInvalidOptions = errors.New("config: invalid options")
	ErrPathEscape     = errors.New("config: path escapes root")
	ErrNotFound       = errors.New("config: not found")
	ErrFileTooLarge   = errors.New("config: file too large")
	ErrUnsupportedExt = errors.New("config: unsupported extension")
	ErrInvalidYAML    = errors.New("config: invalid yaml")
	ErrNotObject      = errors.New("config: top-level must be mapping")
	ErrEnvOverride    = errors.New("config: env override invalid")
)

func NewLoader(root string, opts Options) (*Loader, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, ErrInvalidRoot
	}
	opts.Service = strings.TrimSpace(opts.Service)
	if opts.Service == "" {
		return nil, fmt.Errorf("%w: service required", ErrInvalidOptions)
	}
	opts.Env = strings.TrimSpace(opts.Env)
	opts.ExplicitPath = strings.TrimSpace(opts.ExplicitPath)

	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 2 * 1024 * 1024
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 32
	}
	if opts.MaxEnvVars <= 0 {
		opts.MaxEnvVars = 256
	}
	if opts.PathDelimiter == "" {
		opts.PathDelimiter = "__"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = strings.ToUpper(opts.Service) + "_"
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	absEval, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	info, err := os.Stat(absEval)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory", ErrInvalidRoot)
	}
	return &Loader{
		rootAbs: absEval,
		opts:    opts,
		reSeg:   regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`),
	}, nil
}

func (l *Loader) warn(code, detail string) {
	if l != nil && l.opts.OnWarn != nil {
		l.opts.OnWarn(strings.TrimSpace(code), strings.TrimSpace(detail))
	}
}

// Load loads layered configuration and applies env-var overrides.
func (l *Loader) Load(ctx context.Context) (*Bundle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var docs []Document
	if l.opts.ExplicitPath != "" {
		doc, err := l.loadPath(ctx, l.opts.ExplicitPath, "explicit")
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	} else {
		for _, tp := range l.tierPaths() {
			doc, err := l.loadPath(ctx, tp.path, tp.tier)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			docs = append(docs, *doc)
		}
	}

	layers := make([]map[string]any, 0, len(docs)+1)
	for _, d := range docs {
		layers = append(layers, d.Data)
	}
	if !l.opts.DisableEnvOverrides {
		envMap, err := l.envOverrides()
		if err != nil {
			return nil, err
		}
		if len(envMap) > 0 {
			layers = append(layers, envMap)
		}
	}

	merged, rep := MergeMany(layers, MergeOptions{MaxDepth: l.opts.MaxDepth})
	for _, w := range rep.Warnings {
		l.warn("merge."+w.Code, w.Path+" "+w.Msg)
	}
	return &Bundle{
		Service:  l.opts.Service,
		Env:      l.opts.Env,
		Docs:     docs,
		Merged:   merged,
		LoadedAt: time.Now().UTC(),
		Report:   rep,
	}, nil
}

// Decode re-encodes the merged tree as YAML and decodes it into out,
// so yaml struct tags and time.Duration strings apply.
func (b *Bundle) Decode(out any) error {
	if b == nil {
		return ErrInvalidOptions
	}
	raw, err := yaml.Marshal(b.Merged)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

type tierPath struct {
	tier string
	path string
}

func (l *Loader) tierPaths() []tierPath {
	cands := []string{l.opts.Service + ".yaml", l.opts.Service + ".yml"}
	var out []tierPath
	for _, c := range cands {
		out = append(out, tierPath{tier: "base", path: c})
	}
	if l.opts.Env != "" {
		for _, c := range cands {
			out = append(out, tierPath{tier: "env", path: filepath.Join("env", l.opts.Env, c)})
		}
	}
	return out
}

func (l *Loader) loadPath(ctx context.Context, relOrAbs string, tier string) (*Document, error) {
	var abs string
	if filepath.IsAbs(relOrAbs) {
		absEval, err := filepath.EvalSymlinks(relOrAbs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if !withinRoot(l.rootAbs, absEval) {
			return nil, ErrPathEscape
		}
		abs = absEval
	} else {
		var err error
		abs, err = l.safeJoin(relOrAbs)
		if err != nil {
			return nil, err
		}
	}
	doc, err := l.readDoc(ctx, abs, tier)
	if err != nil {
		return nil, err
	}
	doc.Path = relSlash(l.rootAbs, abs)
	return &doc, nil
}

func (l *Loader) safeJoin(relPath string) (string, error) {
	relClean := filepath.Clean(strings.TrimSpace(relPath))
	if relClean == "." || relClean == "" {
		return "", ErrNotFound
	}
	if relClean == ".." || strings.HasPrefix(relClean, ".."+string(os.PathSeparator)) {
		return "", ErrPathEscape
	}
	absEval, err := filepath.EvalSymlinks(filepath.Join(l.rootAbs, relClean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !withinRoot(l.rootAbs, absEval) {
		return "", ErrPathEscape
	}
	return absEval, nil
}

func withinRoot(rootAbs, targetAbs string) bool {
	root := filepath.Clean(rootAbs)
	tgt := filepath.Clean(targetAbs)
	if tgt == root {
		return true
	}
	if !strings.HasSuffix(root, string(os.PathSeparator)) {
		root += string(os.PathSeparator)
	}
	return strings.HasPrefix(tgt, root)
}

func relSlash(rootAbs, abs string) string {
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		rel = abs
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(rel)), "./")
}

func (l *Loader) readDoc(ctx context.Context, absPath string, tier string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
	default:
		return Document{}, ErrUnsupportedExt
	}
	f, err := os.Open(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, l.opts.MaxFileBytes+1))
	if err != nil {
		return Document{}, err
	}
	if int64(len(raw)) > l.opts.MaxFileBytes {
		return Document{}, ErrFileTooLarge
	}
	sum := sha256.Sum256(raw)

	obj, err := decodeYAMLObject(bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", relSlash(l.rootAbs, absPath), err)
	}
	return Document{
		Tier:     tier,
		LoadedAt: time.Now().UTC(),
		SHA256:   hex.EncodeToString(sum[:]),
		Data:     obj,
	}, nil
}

func decodeYAMLObject(b []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return m, nil
}

// ---- env overrides ----

func (l *Loader) envOverrides() (map[string]any, error) {
	prefix := l.opts.EnvPrefix
	out := map[string]any{}
	matched := 0

	for _, kv := range l.opts.Environ() {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		matched++
		if matched > l.opts.MaxEnvVars {
			return nil, fmt.Errorf("%w: too many env vars for prefix %q", ErrEnvOverride, prefix)
		}
		rest := strings.TrimSpace(strings.TrimPrefix(k, prefix))
		if rest == "" {
			l.warn("env.skip.empty_key", k)
			continue
		}
		segs := make([]string, 0, 4)
		bad := false
		for _, s := range strings.Split(rest, l.opts.PathDelimiter) {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				l.warn("env.skip.empty_segment", k)
				continue
			}
			if !l.reSeg.MatchString(s) {
				l.warn("env.skip.invalid_segment", fmt.Sprintf("%s segment=%q", k, s))
				bad = true
				break
			}
			segs = append(segs, s)
		}
		if bad || len(segs) == 0 {
			continue
		}
		if len(segs) > l.opts.MaxDepth {
			l.warn("env.skip.too_deep", k)
			continue
		}
		Set(out, strings.Join(segs, "."), parseEnvValue(val))
	}
	return out, nil
}

func parseEnvValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case string, bool, int, float64:
			return v
		}
	}
	return s
}
