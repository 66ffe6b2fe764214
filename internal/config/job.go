package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"dateresample/internal/dataprocessing"
	apperrors "dateresample/internal/errors"
	"dateresample/internal/source"
	"dateresample/pkg/contracts/domain"
)

// JobSpec describes one resample run.
type JobSpec struct {
	Name      string                      `json:"name" yaml:"name" toml:"name"`
	Source    source.Options              `json:"source" yaml:"source" toml:"source"`
	Derive    []dataprocessing.Derivation `json:"derive,omitempty" yaml:"derive" toml:"derive" validate:"dive"`
	GroupBy   []string                    `json:"group_by,omitempty" yaml:"group_by" toml:"group_by" validate:"unique,dive,required"`
	Aggregate dataprocessing.Aggregations `json:"aggregate,omitempty" yaml:"aggregate" toml:"aggregate" validate:"dive,keys,required,endkeys"`
	SortBy    []string                    `json:"sort_by,omitempty" yaml:"sort_by" toml:"sort_by" validate:"dive,required"`
	Output    OutputSpec                  `json:"output" yaml:"output" toml:"output"`
}

// OutputSpec says where and how the result is written.
type OutputSpec struct {
	Path   string `json:"path,omitempty" yaml:"path" toml:"path"`
	Format string `json:"format,omitempty" yaml:"format" toml:"format" validate:"omitempty,oneof=csv json xlsx parquet"`
}

var jobValidator = newJobValidator()

func newJobValidator() *validator.Validate {
	v := validator.New()
	// Report YAML key names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadJob reads a job file, choosing the decoder by extension.
func LoadJob(path string) (*JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to read job file", err).WithContext("path", path)
	}

	job, err := ParseJob(data, filepath.Ext(path))
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr.WithContext("path", path)
		}
		return nil, err
	}
	if job.Name == "" {
		job.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return job, nil
}

// ParseJob decodes and validates a job. format is a file extension or
// name: yaml, yml or toml.
func ParseJob(data []byte, format string) (*JobSpec, error) {
	var job JobSpec

	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.UnmarshalStrict(data, &job); err != nil {
			return nil, apperrors.NewConfigError("invalid job yaml", err)
		}
	case "toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&job)
		if err != nil {
			return nil, apperrors.NewConfigError("invalid job toml", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, apperrors.NewConfigError(fmt.Sprintf("unknown job keys: %s", strings.Join(keys, ", ")), nil)
		}
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported job format %q", format), nil)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks the structure of the job. Column names and function
// names are checked later against the data.
func (j *JobSpec) Validate() error {
	if err := jobValidator.Struct(j); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.NewConfigError("invalid job", err)
		}
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag())
		}
		return apperrors.NewConfigError("invalid job: "+strings.Join(msgs, "; "), err)
	}

	// Dtype aliases (integer, double, datetime) resolve to their dtype.
	for name, dt := range j.Source.Types {
		parsed, err := domain.ParseDtype(string(dt))
		if err != nil {
			return apperrors.NewConfigError(fmt.Sprintf("invalid job: source.types.%s", name), err)
		}
		j.Source.Types[name] = parsed
	}
	return nil
}

// ApplyDefaultAggregation sets fn on every aggregation that names no
// function.
func (j *JobSpec) ApplyDefaultAggregation(fn string) {
	for name, agg := range j.Aggregate {
		if agg.Func == "" {
			agg.Func = fn
			j.Aggregate[name] = agg
		}
	}
}
