package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/monitor"
	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/security"
	"github.com/kinetic-data/posture.report/internal/stats"
	"github.com/kinetic-data/posture.report/internal/units"
	"github.com/kinetic-data/posture.report/internal/version"
)

var (
	dbPath    string
	outPath   string
	angleUnit string
	timezone  string
)

var rootCmd = &cobra.Command{
	Use:   "posture-report",
	Short: "Render stored practice sessions into reports",
	Long: "posture-report reads sessions recorded by the posture daemon and\n" +
		"renders them as chart pages, angle plots, or terminal summaries.",
}

var htmlCmd = &cobra.Command{
	Use:   "html <session-id>",
	Short: "Write the session's chart page (code timeline, region pies, angle line)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSessionID(args[0])
		if err != nil {
			return err
		}
		gen, database, err := openGenerator()
		if err != nil {
			return err
		}
		defer database.Close()

		path := outPath
		if path == "" {
			if path, err = defaultArtifactPath(database, id, "html"); err != nil {
				return err
			}
		}
		if err := security.ValidateExportPath(path); err != nil {
			return err
		}
		if err := gen.WriteHTMLReport(id, path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var pngCmd = &cobra.Command{
	Use:   "png <session-id>",
	Short: "Write the session's leg-angle trace with the target band",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSessionID(args[0])
		if err != nil {
			return err
		}
		gen, database, err := openGenerator()
		if err != nil {
			return err
		}
		defer database.Close()

		path := outPath
		if path == "" {
			if path, err = defaultArtifactPath(database, id, "png"); err != nil {
				return err
			}
		}
		if err := security.ValidateExportPath(path); err != nil {
			return err
		}
		if err := gen.WriteAnglePNG(id, path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <session-id>",
	Short: "Print the session summary and percentile table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSessionID(args[0])
		if err != nil {
			return err
		}
		if !units.IsValid(angleUnit) {
			return fmt.Errorf("invalid --units %q: expected one of %s", angleUnit, units.GetValidUnitsString())
		}
		if !units.IsTimezoneValid(timezone) {
			return fmt.Errorf("invalid --tz %q", timezone)
		}
		gen, database, err := openGenerator()
		if err != nil {
			return err
		}
		defer database.Close()

		sess, err := database.GetSession(id)
		if err != nil {
			return fmt.Errorf("failed to load session %d: %w", id, err)
		}
		st, err := gen.SessionStats(id)
		if err != nil {
			return err
		}
		return printStats(os.Stdout, sess, st)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("posture-report %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "posture_data.db", "Path to the SQLite database file")

	htmlCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default session_<id>_<name>.html)")
	pngCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default session_<id>_<name>.png)")
	statsCmd.Flags().StringVar(&angleUnit, "units", units.Degrees, "Angle units ("+units.GetValidUnitsString()+")")
	statsCmd.Flags().StringVar(&timezone, "tz", "UTC", "Timezone for timestamps")

	rootCmd.AddCommand(htmlCmd)
	rootCmd.AddCommand(pngCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseSessionID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", arg)
	}
	return id, nil
}

func openGenerator() (*monitor.Generator, *db.DB, error) {
	database, err := db.NewDB(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return monitor.NewGenerator(database, nil), database, nil
}

// defaultArtifactPath names an artifact after the session so repeated runs
// against different sessions do not clobber each other.
func defaultArtifactPath(database *db.DB, id int, ext string) (string, error) {
	sess, err := database.GetSession(id)
	if err != nil {
		return "", fmt.Errorf("failed to load session %d: %w", id, err)
	}
	name := security.SanitizeFilename(sess.Name)
	if name == "" {
		return fmt.Sprintf("session_%d.%s", id, ext), nil
	}
	return fmt.Sprintf("session_%d_%s.%s", id, name, ext), nil
}

func printStats(w io.Writer, sess *db.Session, st *stats.SessionStats) error {
	started, err := units.ConvertTime(time.Unix(0, int64(sess.StartedAtUnix*float64(time.Second))), timezone)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Session %d: %s\n", sess.ID, sess.Name)
	fmt.Fprintf(w, "Started:  %s\n", started.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Frames:   %d over %.1fs\n", st.TotalFrames, st.DurationSec)
	fmt.Fprintf(w, "Target:   %s within factor %.2f\n\n", formatAngle(sess.TargetAngle), sess.Tolerance)

	printRegion(w, "Arms", st.Arms)
	printRegion(w, "Leg", st.Leg)

	a := st.LegAngle
	fmt.Fprintf(w, "\nLeg angle (%s), n=%d\n", angleUnit, a.Count)
	fmt.Fprintf(w, "  mean %s  stddev %s  min %s  max %s\n",
		formatAngle(a.Mean), formatAngle(a.StdDev), formatAngle(a.Min), formatAngle(a.Max))
	fmt.Fprintf(w, "  p25 %s  p50 %s  p75 %s  p95 %s\n",
		formatAngle(a.P25), formatAngle(a.P50), formatAngle(a.P75), formatAngle(a.P95))
	return nil
}

func printRegion(w io.Writer, name string, r stats.RegionSummary) {
	fmt.Fprintf(w, "%s: dominant %q\n", name, r.Dominant)
	for _, code := range pose.Codes() {
		n, ok := r.Counts[string(code)]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-9s %6d frames  %5.1f%%\n", code, n, r.Fractions[string(code)]*100)
	}
	for _, h := range r.Holds {
		fmt.Fprintf(w, "  %-9s holds: n=%d  mean %.2fs  p50 %.2fs  p95 %.2fs  max %.2fs\n",
			h.Code, h.Count, h.MeanSec, h.P50Sec, h.P95Sec, h.MaxSec)
	}
}

func formatAngle(deg float64) string {
	v := units.ConvertAngle(deg, angleUnit)
	switch angleUnit {
	case units.Radians:
		return fmt.Sprintf("%.3f rad", v)
	case units.Gradians:
		return fmt.Sprintf("%.1f grad", v)
	default:
		return fmt.Sprintf("%.1f deg", v)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
