// Package config resolves connection settings for the CLI.
//
// Layers apply lowest to highest: built-in defaults, the global config.yaml,
// the selected instance profile, ODOO_* environment variables and finally
// command-line flags. The result is a validated connection.Descriptor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vodoo/cli/internal/xdg"
	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
)

// DefaultInstance is used when no instance is selected anywhere.
const DefaultInstance = "default"

const (
	globalFile          = "config.yaml"
	defaultInstanceFile = "default-instance"
	instancesDir        = "instances"
	profileExt          = ".yaml"
)

var instanceNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Settings is one configuration layer. Empty strings and nil pointers are unset.
type Settings struct {
	URL             string   `yaml:"url"`
	Database        string   `yaml:"database"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	DefaultUserID   *int64   `yaml:"default_user_id"`
	RetryCount      *int     `yaml:"retry_count"`
	RetryBackoff    *float64 `yaml:"retry_backoff"`     // seconds
	RetryMaxBackoff *float64 `yaml:"retry_max_backoff"` // seconds
	Timeout         *float64 `yaml:"timeout"`           // seconds
	Protocol        string   `yaml:"protocol"`
	RateLimit       *float64 `yaml:"rate_limit"` // requests per second
	RateBurst       *int     `yaml:"rate_burst"`
}

// merge overlays the set fields of o onto s.
func (s *Settings) merge(o Settings) {
	setString(&s.URL, o.URL)
	setString(&s.Database, o.Database)
	setString(&s.Username, o.Username)
	setString(&s.Password, o.Password)
	setString(&s.Protocol, o.Protocol)
	if o.DefaultUserID != nil {
		s.DefaultUserID = o.DefaultUserID
	}
	if o.RetryCount != nil {
		s.RetryCount = o.RetryCount
	}
	if o.RetryBackoff != nil {
		s.RetryBackoff = o.RetryBackoff
	}
	if o.RetryMaxBackoff != nil {
		s.RetryMaxBackoff = o.RetryMaxBackoff
	}
	if o.Timeout != nil {
		s.Timeout = o.Timeout
	}
	if o.RateLimit != nil {
		s.RateLimit = o.RateLimit
	}
	if o.RateBurst != nil {
		s.RateBurst = o.RateBurst
	}
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Descriptor builds a connection descriptor from s and validates it.
func (s Settings) Descriptor() (connection.Descriptor, error) {
	d := connection.New(strings.TrimSpace(s.URL), strings.TrimSpace(s.Database), strings.TrimSpace(s.Username), connection.Secret(s.Password))
	if s.DefaultUserID != nil {
		d.DefaultActorID = *s.DefaultUserID
	}
	if s.RetryCount != nil {
		d.Retry.MaxRetries = *s.RetryCount
	}
	if s.RetryBackoff != nil {
		d.Retry.Backoff.BaseDelay = seconds(*s.RetryBackoff)
	}
	if s.RetryMaxBackoff != nil {
		d.Retry.Backoff.MaxDelay = seconds(*s.RetryMaxBackoff)
	}
	if s.Timeout != nil {
		d.Timeout = seconds(*s.Timeout)
	}
	if s.Protocol != "" {
		p, err := connection.ParseProtocol(s.Protocol)
		if err != nil {
			return d, err
		}
		d.Protocol = p
	}
	if s.RateLimit != nil {
		d.RateLimit.RPS = *s.RateLimit
	}
	if s.RateBurst != nil {
		d.RateLimit.Burst = *s.RateBurst
	}
	return d, d.Validate()
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// Loader reads configuration layers. Zero fields use the process defaults.
type Loader struct {
	// GlobalDir holds config.yaml and instances/; defaults to the XDG config dir.
	GlobalDir string
	// ProjectDir is the project-local .vodoo directory; defaults to ./.vodoo.
	ProjectDir string
	// LookupEnv reads environment variables; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Result is a resolved configuration.
type Result struct {
	Descriptor connection.Descriptor
	Instance   string
	// Sources lists the files that contributed, lowest layer first.
	Sources []string
}

func (l Loader) withDefaults() (Loader, error) {
	if l.GlobalDir == "" {
		dir, err := xdg.ConfigPath()
		if err != nil {
			return l, &odooerr.ConfigurationError{Message: "cannot locate config directory", Err: err}
		}
		l.GlobalDir = dir
	}
	if l.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return l, &odooerr.ConfigurationError{Message: "cannot locate working directory", Err: err}
		}
		l.ProjectDir = xdg.ProjectDir(wd)
	}
	if l.LookupEnv == nil {
		l.LookupEnv = os.LookupEnv
	}
	return l, nil
}

// Load resolves every layer. instance may be empty; flags is the top layer.
func (l Loader) Load(instance string, flags Settings) (Result, error) {
	l, err := l.withDefaults()
	if err != nil {
		return Result{}, err
	}
	var res Result
	var s Settings

	global := filepath.Join(l.GlobalDir, globalFile)
	if ok, err := readLayer(global, &s); err != nil {
		return res, err
	} else if ok {
		res.Sources = append(res.Sources, global)
	}

	name, explicit, err := l.ResolveInstance(instance)
	if err != nil {
		return res, err
	}
	res.Instance = name

	profile, found := l.findProfile(name)
	if found {
		if _, err := readLayer(profile, &s); err != nil {
			return res, err
		}
		res.Sources = append(res.Sources, profile)
	}

	env, err := l.envLayer()
	if err != nil {
		return res, err
	}
	if explicit && !found && !hasCredentials(env) {
		return res, odooerr.Configuration("no config found for instance %q. Looked in: %s",
			name, strings.Join(l.profileCandidates(name), ", "))
	}
	s.merge(env)
	s.merge(flags)

	res.Descriptor, err = s.Descriptor()
	return res, err
}

// ResolveInstance picks the instance name: the argument, then VODOO_INSTANCE,
// then the project and global default-instance files. explicit is false only
// when falling back to DefaultInstance.
func (l Loader) ResolveInstance(instance string) (name string, explicit bool, err error) {
	l, err = l.withDefaults()
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(instance) != "" {
		name, err = NormalizeInstance(instance)
		return name, true, err
	}
	if v, ok := l.LookupEnv("VODOO_INSTANCE"); ok && strings.TrimSpace(v) != "" {
		name, err = NormalizeInstance(v)
		return name, true, err
	}
	for _, dir := range []string{l.ProjectDir, l.GlobalDir} {
		name, err := readDefaultInstance(filepath.Join(dir, defaultInstanceFile))
		if err != nil {
			return "", false, err
		}
		if name != "" {
			return name, true, nil
		}
	}
	return DefaultInstance, false, nil
}

// NormalizeInstance trims and validates an instance name. Blank means DefaultInstance.
func NormalizeInstance(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return DefaultInstance, nil
	}
	if !instanceNameRe.MatchString(n) {
		return "", odooerr.Configuration("invalid instance name %q. Use letters, digits, '.', '_' or '-' only", name)
	}
	return n, nil
}

func readDefaultInstance(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", &odooerr.ConfigurationError{Message: "failed to read default instance file " + path, Err: err}
	}
	for _, line := range strings.Split(string(data), "\n") {
		c := strings.TrimSpace(line)
		if c != "" && !strings.HasPrefix(c, "#") {
			return NormalizeInstance(c)
		}
	}
	return "", nil
}

// WriteDefaultInstance records name as the default instance, in the project
// directory when project is true and in the global directory otherwise.
func (l Loader) WriteDefaultInstance(name string, project bool) (string, error) {
	l, err := l.withDefaults()
	if err != nil {
		return "", err
	}
	n, err := NormalizeInstance(name)
	if err != nil {
		return "", err
	}
	dir := l.GlobalDir
	if project {
		dir = l.ProjectDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, defaultInstanceFile)
	return path, os.WriteFile(path, []byte(n+"\n"), 0o600)
}

// Profiles lists instance profiles by name, project files first.
func (l Loader) Profiles() (map[string][]string, error) {
	l, err := l.withDefaults()
	if err != nil {
		return nil, err
	}
	out := map[string][]string{}
	for _, dir := range []string{l.ProjectDir, l.GlobalDir} {
		entries, err := os.ReadDir(filepath.Join(dir, instancesDir))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			name, ok := strings.CutSuffix(e.Name(), profileExt)
			if e.IsDir() || !ok || !instanceNameRe.MatchString(name) {
				continue
			}
			out[name] = append(out[name], filepath.Join(dir, instancesDir, e.Name()))
		}
	}
	return out, nil
}

func (l Loader) profileCandidates(name string) []string {
	return []string{
		filepath.Join(l.ProjectDir, instancesDir, name+profileExt),
		filepath.Join(l.GlobalDir, instancesDir, name+profileExt),
	}
}

func (l Loader) findProfile(name string) (string, bool) {
	for _, p := range l.profileCandidates(name) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// readLayer decodes the YAML file at path into s. A missing file is not an error.
func readLayer(path string, s *Settings) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &odooerr.ConfigurationError{Message: "failed to read " + path, Err: err}
	}
	var layer Settings
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return false, &odooerr.ConfigurationError{Message: "invalid config file " + path, Err: err}
	}
	s.merge(layer)
	return true, nil
}

func hasCredentials(s Settings) bool {
	return strings.TrimSpace(s.URL) != "" && strings.TrimSpace(s.Database) != "" &&
		strings.TrimSpace(s.Username) != "" && strings.TrimSpace(s.Password) != ""
}

// envLayer reads the ODOO_* variables.
func (l Loader) envLayer() (Settings, error) {
	var s Settings
	get := func(key string) string {
		v, _ := l.LookupEnv(key)
		return strings.TrimSpace(v)
	}
	s.URL = get("ODOO_URL")
	s.Database = get("ODOO_DATABASE")
	s.Username = get("ODOO_USERNAME")
	if v, ok := l.LookupEnv("ODOO_PASSWORD"); ok {
		s.Password = v
	}
	s.Protocol = get("ODOO_PROTOCOL")

	var err error
	if s.DefaultUserID, err = envInt64(get, "ODOO_DEFAULT_USER_ID"); err != nil {
		return s, err
	}
	if s.RetryCount, err = envInt(get, "ODOO_RETRY_COUNT"); err != nil {
		return s, err
	}
	if s.RateBurst, err = envInt(get, "ODOO_RATE_BURST"); err != nil {
		return s, err
	}
	floats := []struct {
		key string
		dst **float64
	}{
		{"ODOO_RETRY_BACKOFF", &s.RetryBackoff},
		{"ODOO_RETRY_MAX_BACKOFF", &s.RetryMaxBackoff},
		{"ODOO_TIMEOUT", &s.Timeout},
		{"ODOO_RATE_LIMIT", &s.RateLimit},
	}
	for _, f := range floats {
		if *f.dst, err = envFloat(get, f.key); err != nil {
			return s, err
		}
	}
	return s, nil
}

func envInt(get func(string) string, key string) (*int, error) {
	v := get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, invalidEnv(key, v, err)
	}
	return &n, nil
}

func envInt64(get func(string) string, key string) (*int64, error) {
	v := get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, invalidEnv(key, v, err)
	}
	return &n, nil
}

func envFloat(get func(string) string, key string) (*float64, error) {
	v := get(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, invalidEnv(key, v, err)
	}
	return &f, nil
}

func invalidEnv(key, value string, err error) error {
	return &odooerr.ConfigurationError{Message: fmt.Sprintf("invalid %s %q", key, value), Err: err}
}
