package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

// ReadLint reads and validates a LintReport from path. A missing file, an
// invalid JSON document, or a schema violation are all reported as
// MalformedOutput (spec §4.4: "a missing file is not valid output").
func ReadLint(path string) (LintReport, error) {
	var r LintReport
	data, err := os.ReadFile(path)
	if err != nil {
		return r, pipelineerr.Newf(pipelineerr.MalformedOutput, "cannot read lint report %s: %v", path, err)
	}
	if lintValidator != nil {
		if err := lintValidator.Validate(data); err != nil {
			return r, toMalformed(err, path)
		}
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, pipelineerr.Newf(pipelineerr.MalformedOutput, "cannot parse lint report %s: %v", path, err)
	}
	return r, nil
}

// WriteLint atomically writes r to path (write-temp-then-rename).
func WriteLint(path string, r LintReport) error {
	return atomicWriteJSON(path, r)
}

// ReadFix reads and validates a FixReport from path, additionally checking
// the cross-field invariant FixesApplied + FixesFailed == FixesAttempted
// (not expressible in the generated structural schema).
func ReadFix(path string) (FixReport, error) {
	var r FixReport
	data, err := os.ReadFile(path)
	if err != nil {
		return r, pipelineerr.Newf(pipelineerr.MalformedOutput, "cannot read fix report %s: %v", path, err)
	}
	if fixValidator != nil {
		if err := fixValidator.Validate(data); err != nil {
			return r, toMalformed(err, path)
		}
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, pipelineerr.Newf(pipelineerr.MalformedOutput, "cannot parse fix report %s: %v", path, err)
	}
	if r.FixesApplied+r.FixesFailed != r.FixesAttempted {
		return r, pipelineerr.Newf(pipelineerr.SchemaError,
			"fix report %s violates invariant: applied(%d)+failed(%d) != attempted(%d)",
			path, r.FixesApplied, r.FixesFailed, r.FixesAttempted)
	}
	return r, nil
}

// WriteFix atomically writes r to path.
func WriteFix(path string, r FixReport) error {
	return atomicWriteJSON(path, r)
}

func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to marshal report: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to create report directory: %v", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to create temp report file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return pipelineerr.Newf(pipelineerr.Internal, "failed to write temp report file: %v", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return pipelineerr.Newf(pipelineerr.Internal, "failed to fsync temp report file: %v", err)
	}
	if err := f.Close(); err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to close temp report file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to rename temp report file into place: %v", err)
	}
	return nil
}

func toMalformed(err error, path string) error {
	if pe, ok := pipelineerr.As(err); ok {
		return pipelineerr.New(pipelineerr.MalformedOutput, pe.Message).WithDetail("path", path)
	}
	return pipelineerr.Newf(pipelineerr.MalformedOutput, "%s: %v", path, err)
}
