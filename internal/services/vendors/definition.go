package vendors

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/models"
)

var (
	vendorIDPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)
)

// placeholders are the URL template keys. Values missing from a request expand to "".
var placeholders = []string{
	"{query}", "{address}", "{city}", "{state}", "{from}", "{to}",
	"{adults}", "{children}", "{child_ages}", "{lat}", "{lng}",
}

// Definition scripts a vendor site. Selectors are CSS selectors.
type Definition struct {
	ID       string      `toml:"id" validate:"required,max=64"`
	Name     string      `toml:"name"`
	StartURL string      `toml:"start_url" validate:"required,url"`
	Login    *LoginStep  `toml:"login" validate:"omitempty"`
	OTP      *OTPStep    `toml:"otp" validate:"omitempty"`
	Search   SearchStep  `toml:"search"`
	Results  ResultsStep `toml:"results"`
}

// LoginStep fills a login form when Detect is present on the start page
type LoginStep struct {
	Detect      string `toml:"detect" validate:"required"`
	Username    string `toml:"username" validate:"required"`
	Password    string `toml:"password" validate:"required"`
	Submit      string `toml:"submit" validate:"required"`
	UsernameEnv string `toml:"username_env" validate:"required"`
	PasswordEnv string `toml:"password_env" validate:"required"`
}

// OTPStep asks a human for a one-time code when Detect is present after login
type OTPStep struct {
	Detect string `toml:"detect" validate:"required"`
	Input  string `toml:"input" validate:"required"`
	Submit string `toml:"submit" validate:"required"`
}

// SearchStep runs one query, either through a form or a URL template.
// Template placeholders: {query} {address} {city} {state} {from} {to} {adults}
// {children} (count) {child_ages} (comma separated) {lat} {lng}
type SearchStep struct {
	Input     string `toml:"input" validate:"required_without=URL"`
	Submit    string `toml:"submit"`
	URL       string `toml:"url"`
	NoResults string `toml:"no_results"`
	Settle    string `toml:"settle"`
}

// ResultsStep extracts candidates from the results page
type ResultsStep struct {
	Card     string `toml:"card" validate:"required"`
	Name     string `toml:"name" validate:"required"`
	Address  string `toml:"address"`
	Price    string `toml:"price"`
	Link     string `toml:"link"`
	LinkAttr string `toml:"link_attr"`
}

// DisplayName returns Name, falling back to ID
func (d *Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// SettleDuration is the pause after a query before inspecting results
func (d *Definition) SettleDuration() time.Duration {
	return common.ParseDurationOr(d.Search.Settle, 0)
}

// Validate checks required fields and the id format
func (d *Definition) Validate() error {
	if err := validator.New().Struct(d); err != nil {
		return fmt.Errorf("invalid vendor definition %q: %w", d.ID, err)
	}
	if !vendorIDPattern.MatchString(d.ID) {
		return fmt.Errorf("invalid vendor id %q", d.ID)
	}
	for _, p := range placeholderPattern.FindAllString(d.Search.URL, -1) {
		if !isPlaceholder(p) {
			return fmt.Errorf("vendor %q: unknown search url placeholder %s", d.ID, p)
		}
	}
	return nil
}

func isPlaceholder(p string) bool {
	for _, known := range placeholders {
		if p == known {
			return true
		}
	}
	return false
}

// QueryURL expands the search URL template for one query
func (d *Definition) QueryURL(query string, req *models.SearchRequest) string {
	values := make(map[string]string, len(placeholders))
	for _, p := range placeholders {
		values[p] = ""
	}
	values["{query}"] = query
	values["{address}"] = req.Hotel.FormattedAddress
	values["{city}"] = req.Hotel.City
	values["{state}"] = req.Hotel.State
	values["{adults}"] = strconv.Itoa(req.Adults)
	values["{children}"] = strconv.Itoa(len(req.Children))

	ages := make([]string, len(req.Children))
	for i, age := range req.Children {
		ages[i] = strconv.Itoa(age)
	}
	values["{child_ages}"] = strings.Join(ages, ",")

	if len(req.DateRanges) > 0 {
		values["{from}"] = req.DateRanges[0].From
		values["{to}"] = req.DateRanges[0].To
	}
	if loc := req.Hotel.Location; loc != nil {
		values["{lat}"] = strconv.FormatFloat(loc.Latitude, 'f', -1, 64)
		values["{lng}"] = strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
	}

	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, url.QueryEscape(v))
	}
	return strings.NewReplacer(pairs...).Replace(d.Search.URL)
}

// LoadDefinitions reads every *.toml file in dir. A missing directory yields no definitions.
// The id defaults to the file name without extension.
func LoadDefinitions(dir string) ([]*Definition, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list vendor definitions: %w", err)
	}
	sort.Strings(paths)

	defs := make([]*Definition, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		def, err := LoadDefinition(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("vendor %q defined in both %s and %s", def.ID, prev, path)
		}
		seen[def.ID] = path
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadDefinition parses and validates one definition file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor definition %s: %w", path, err)
	}

	var def Definition
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse vendor definition %s: %w", path, err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if def.Results.LinkAttr == "" {
		def.Results.LinkAttr = "href"
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &def, nil
}
