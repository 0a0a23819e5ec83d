// Package monitor renders stored sessions into report artifacts: an HTML
// page of interactive charts and a PNG of the leg-angle trace. The report
// CLI drives it against the session store; tests drive it against an
// in-memory source and filesystem.
package monitor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/fsutil"
	"github.com/kinetic-data/posture.report/internal/stats"
)

// SessionSource is the slice of the session store the report generator
// reads. *db.DB satisfies it.
type SessionSource interface {
	GetSession(id int) (*db.Session, error)
	FrameCodeTimeline(sessionID int) (*db.FrameCodeSeries, error)
	CodeCounts(sessionID int) (*db.SessionCodeCounts, error)
}

// Generator renders report artifacts for stored sessions.
type Generator struct {
	source SessionSource
	fs     fsutil.FileSystem
}

// NewGenerator creates a Generator. A nil filesystem writes to the OS.
func NewGenerator(source SessionSource, fs fsutil.FileSystem) *Generator {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Generator{source: source, fs: fs}
}

// report bundles everything the renderers consume.
type report struct {
	Session *db.Session
	Series  *db.FrameCodeSeries
	Counts  *db.SessionCodeCounts
	Stats   *stats.SessionStats
}

func (g *Generator) assemble(sessionID int) (*report, error) {
	sess, err := g.source.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	series, err := g.source.FrameCodeTimeline(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline for session %d: %w", sessionID, err)
	}
	counts, err := g.source.CodeCounts(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load code counts for session %d: %w", sessionID, err)
	}
	return &report{
		Session: sess,
		Series:  series,
		Counts:  counts,
		Stats:   stats.Compute(sessionID, series),
	}, nil
}

// HTMLReport renders the session's chart page to w.
func (g *Generator) HTMLReport(sessionID int, w io.Writer) error {
	rep, err := g.assemble(sessionID)
	if err != nil {
		return err
	}
	return renderHTML(w, rep)
}

// WriteHTMLReport renders the chart page to a file.
func (g *Generator) WriteHTMLReport(sessionID int, path string) error {
	var buf bytes.Buffer
	if err := g.HTMLReport(sessionID, &buf); err != nil {
		return err
	}
	if err := g.fs.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteAnglePNG renders the leg-angle trace with the target band to a
// PNG file.
func (g *Generator) WriteAnglePNG(sessionID int, path string) error {
	rep, err := g.assemble(sessionID)
	if err != nil {
		return err
	}
	data, err := renderAnglePNG(rep)
	if err != nil {
		return err
	}
	if err := g.fs.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write angle plot: %w", err)
	}
	return nil
}

// SessionStats returns the computed summary for a stored session, for
// callers that want the numbers without an artifact.
func (g *Generator) SessionStats(sessionID int) (*stats.SessionStats, error) {
	rep, err := g.assemble(sessionID)
	if err != nil {
		return nil, err
	}
	return rep.Stats, nil
}
