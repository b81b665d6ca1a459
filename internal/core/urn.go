package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultEnv is the fabric used when a connector does not configure one.
	DefaultEnv = "PROD"

	// ActorETL is the audit actor stamped on records produced by ingestion.
	ActorETL = "urn:li:corpuser:etl"

	datasetPrefix  = "urn:li:dataset:("
	platformPrefix = "urn:li:dataPlatform:"
)

var fabrics = map[string]bool{
	"PROD":     true,
	"DEV":      true,
	"TEST":     true,
	"QA":       true,
	"UAT":      true,
	"EI":       true,
	"PRE":      true,
	"STG":      true,
	"NON_PROD": true,
	"CORP":     true,
	"SANDBOX":  true,
}

// ErrInvalidURN is matched by errors from URN construction and parsing.
var ErrInvalidURN = errors.New("invalid urn")

// InvalidURNError describes why a URN could not be built or parsed.
type InvalidURNError struct {
	Value  string
	Reason string
}

func (e *InvalidURNError) Error() string {
	return fmt.Sprintf("invalid urn %q: %s", e.Value, e.Reason)
}

func (e *InvalidURNError) Is(target error) bool { return target == ErrInvalidURN }

// NormalizeEnv upper-cases env and checks it against the known fabrics. An
// empty env is DefaultEnv.
func NormalizeEnv(env string) (string, error) {
	env = strings.ToUpper(strings.TrimSpace(env))
	if env == "" {
		return DefaultEnv, nil
	}
	if !fabrics[env] {
		return "", &InvalidURNError{Value: env, Reason: "unknown environment"}
	}
	return env, nil
}

// PlatformURN returns urn:li:dataPlatform:<platform>.
func PlatformURN(platform string) string {
	return platformPrefix + platform
}

// DatasetKey is the parsed form of a dataset URN.
type DatasetKey struct {
	Platform string
	Name     string
	Env      string
}

// URN renders the key.
func (k DatasetKey) URN() string {
	return fmt.Sprintf("%s%s,%s,%s)", datasetPrefix, PlatformURN(k.Platform), k.Name, k.Env)
}

// DatasetURN builds urn:li:dataset:(urn:li:dataPlatform:<platform>,<name>,<ENV>).
// Names containing URN delimiters are rejected rather than escaped.
func DatasetURN(platform, name, env string) (string, error) {
	if err := checkPart("platform", platform); err != nil {
		return "", err
	}
	if err := checkPart("name", name); err != nil {
		return "", err
	}
	fabric, err := NormalizeEnv(env)
	if err != nil {
		return "", err
	}
	return DatasetKey{Platform: platform, Name: name, Env: fabric}.URN(), nil
}

// ParseDatasetURN splits a dataset URN into its key.
func ParseDatasetURN(urn string) (DatasetKey, error) {
	if !strings.HasPrefix(urn, datasetPrefix) || !strings.HasSuffix(urn, ")") {
		return DatasetKey{}, &InvalidURNError{Value: urn, Reason: "not a dataset urn"}
	}
	parts := strings.Split(urn[len(datasetPrefix):len(urn)-1], ",")
	if len(parts) != 3 {
		return DatasetKey{}, &InvalidURNError{Value: urn, Reason: "expected 3 key parts"}
	}
	if !strings.HasPrefix(parts[0], platformPrefix) {
		return DatasetKey{}, &InvalidURNError{Value: urn, Reason: "missing platform urn"}
	}
	key := DatasetKey{
		Platform: strings.TrimPrefix(parts[0], platformPrefix),
		Name:     parts[1],
		Env:      parts[2],
	}
	if key.Platform == "" || key.Name == "" {
		return DatasetKey{}, &InvalidURNError{Value: urn, Reason: "empty key part"}
	}
	return key, nil
}

func checkPart(label, v string) error {
	if strings.TrimSpace(v) == "" {
		return &InvalidURNError{Value: v, Reason: label + " is empty"}
	}
	if strings.ContainsAny(v, ",()") {
		return &InvalidURNError{Value: v, Reason: label + " contains a reserved character"}
	}
	return nil
}
