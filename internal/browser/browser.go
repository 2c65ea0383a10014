// Package browser describes the browser identities a sandbox can run and the
// per-browser differences the rest of browserbox needs to know about.
package browser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is a supported browser family.
type Type string

const (
	Chrome  Type = "chrome"
	Firefox Type = "firefox"
	Edge    Type = "edge"
)

// DefaultVersion is used when an identity omits its version.
const DefaultVersion = "latest"

// Descriptor holds the per-browser strategies. Adding a browser means adding
// a row to descriptors, nothing else.
type Descriptor struct {
	Type Type

	// BaseImage is the upstream standalone image the custom image builds on.
	BaseImage string

	// HeadlessEnv returns extra container environment for headless mode.
	// Some engines cannot infer a window size without a display.
	HeadlessEnv func(width, height int) map[string]string

	// BaseTag resolves the upstream tag to build from for a requested version.
	BaseTag func(version string) string
}

// SeleniumBaseTag is the upstream standalone image tag used for "latest" builds.
const SeleniumBaseTag = "4.1"

func pinnedOrDefault(version string) string {
	if version == "" || version == DefaultVersion {
		return SeleniumBaseTag
	}
	return version
}

func noHeadlessEnv(int, int) map[string]string { return nil }

var descriptors = map[Type]Descriptor{
	Chrome: {
		Type:        Chrome,
		BaseImage:   "selenium/standalone-chrome",
		HeadlessEnv: noHeadlessEnv,
		BaseTag:     pinnedOrDefault,
	},
	Firefox: {
		Type:      Firefox,
		BaseImage: "selenium/standalone-firefox",
		// geckodriver ignores window-size arguments without a display
		HeadlessEnv: func(width, height int) map[string]string {
			return map[string]string{
				"MOZ_HEADLESS_WIDTH":  strconv.Itoa(width),
				"MOZ_HEADLESS_HEIGHT": strconv.Itoa(height),
			}
		},
		BaseTag: pinnedOrDefault,
	},
	Edge: {
		Type:        Edge,
		BaseImage:   "selenium/standalone-edge",
		HeadlessEnv: noHeadlessEnv,
		BaseTag:     pinnedOrDefault,
	},
}

// Supported returns the supported browser types in stable order.
func Supported() []Type {
	types := make([]Type, 0, len(descriptors))
	for t := range descriptors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SupportedNames returns Supported as strings, for flag help and regexps.
func SupportedNames() []string {
	var names []string
	for _, t := range Supported() {
		names = append(names, string(t))
	}
	return names
}

// Lookup returns the descriptor for a browser type.
func Lookup(t Type) (Descriptor, bool) {
	d, ok := descriptors[t]
	return d, ok
}

// ParseType validates a browser type name (case-insensitive).
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := descriptors[t]; !ok {
		return "", fmt.Errorf("unsupported browser %q (supported: %s)", s, strings.Join(SupportedNames(), ", "))
	}
	return t, nil
}

// Identity is the (browser, version) pair a sandbox runs.
type Identity struct {
	Type    Type   `yaml:"browser" json:"browser"`
	Version string `yaml:"version" json:"version"`
}

// ParseIdentity parses "chrome" or "chrome:120.0" into an Identity.
func ParseIdentity(s string) (Identity, error) {
	name, version, found := strings.Cut(s, ":")
	t, err := ParseType(name)
	if err != nil {
		return Identity{}, err
	}
	if !found || version == "" {
		version = DefaultVersion
	}
	if strings.ContainsAny(version, " /:") {
		return Identity{}, fmt.Errorf("invalid version %q for %s", version, t)
	}
	return Identity{Type: t, Version: version}, nil
}

// String returns "type:version", the schedule group key.
func (i Identity) String() string {
	return string(i.Type) + ":" + i.version()
}

func (i Identity) version() string {
	if i.Version == "" {
		return DefaultVersion
	}
	return i.Version
}

// Image returns the image name for this identity: <prefix>-<type>:<version>.
func (i Identity) Image(prefix string) string {
	return fmt.Sprintf("%s-%s:%s", prefix, i.Type, i.version())
}

// Validate checks that the identity names a supported browser.
func (i Identity) Validate() error {
	if _, ok := descriptors[i.Type]; !ok {
		return fmt.Errorf("unsupported browser %q", i.Type)
	}
	return nil
}
