package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/auraclip/auraclip-agent/internal/api"
	"github.com/auraclip/auraclip-agent/internal/export"
	"github.com/auraclip/auraclip-agent/internal/publish"
)

var (
	detectThreshold float64
	detectMinLen    float64
	detectWait      bool

	selectScenesArg string
	selectAll       bool
	selectDeselect  bool

	exportOut     string
	exportScenes  string
	exportFormat  string
	exportProject string
	exportFPS     float64
	exportCRF     int
	exportWait    bool

	jobsLimit   int
	eventsLimit int

	folderName  string
	folderWatch bool
	scanWait    bool

	publishWait bool
)

func init() {
	detectCmd.Flags().Float64Var(&detectThreshold, "threshold", 0, "scene change threshold (0..1, agent default if unset)")
	detectCmd.Flags().Float64Var(&detectMinLen, "min-scene-len", 0, "minimum scene length in seconds")
	detectCmd.Flags().BoolVar(&detectWait, "wait", false, "block until detection finishes")

	selectCmd.Flags().StringVar(&selectScenesArg, "scenes", "", "scene numbers, e.g. 1,3-5")
	selectCmd.Flags().BoolVar(&selectAll, "all", false, "apply to every scene")
	selectCmd.Flags().BoolVar(&selectDeselect, "deselect", false, "deselect instead of select")

	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (agent default if unset)")
	exportCmd.Flags().StringVar(&exportScenes, "scenes", "", "scene numbers, e.g. 1,3-5 (selected scenes if unset)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "mp4", "export format: mp4 or edl")
	exportCmd.Flags().StringVar(&exportProject, "project", "", "EDL project name (video name if unset)")
	exportCmd.Flags().Float64Var(&exportFPS, "fps", 0, "EDL timecode frame rate (video fps if unset)")
	exportCmd.Flags().IntVar(&exportCRF, "crf", 0, "x264 quality (agent default if unset)")
	exportCmd.Flags().BoolVar(&exportWait, "wait", false, "block until the export finishes")

	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum jobs to list")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 30, "maximum events to list")

	foldersAddCmd.Flags().StringVar(&folderName, "name", "", "display name (folder name if unset)")
	foldersAddCmd.Flags().BoolVar(&folderWatch, "watch", false, "auto-import new videos in this folder")
	foldersScanCmd.Flags().BoolVar(&scanWait, "wait", false, "block until the scan finishes")

	publishCmd.Flags().BoolVar(&publishWait, "wait", false, "block until the upload finishes")

	foldersCmd.AddCommand(foldersAddCmd, foldersRemoveCmd, foldersScanCmd)
	rootCmd.AddCommand(statusCmd, importCmd, videosCmd, removeCmd, detectCmd,
		scenesCmd, selectCmd, exportCmd, jobsCmd, foldersCmd, eventsCmd, publishCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent state and tool availability",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var st api.StatusResponse
		if err := c.get(cmd.Context(), "/status", &st); err != nil {
			return err
		}

		fmt.Printf("state:    %s\n", st.State)
		fmt.Printf("videos:   %d\n", st.VideosCount)
		fmt.Printf("folders:  %d\n", st.FoldersCount)
		if st.ActiveJob != nil {
			fmt.Printf("job:      %s %d%% (%s)\n", st.ActiveJob.Type, st.ActiveJob.Progress, shortID(st.ActiveJob.ID))
		}
		if st.LastError != "" {
			fmt.Printf("error:    %s\n", st.LastError)
		}
		if st.Tools != nil {
			fmt.Printf("ffmpeg:   %s\n", toolLine(st.Tools.FFmpegAvailable, st.Tools.FFmpegVersion))
			fmt.Printf("ffprobe:  %s\n", toolLine(st.Tools.FFprobeAvailable, st.Tools.FFprobeVersion))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Import video files into the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		for _, arg := range args {
			path, err := filepath.Abs(arg)
			if err != nil {
				return err
			}

			var video api.VideoResponse
			if err := c.post(cmd.Context(), "/videos", api.ImportVideoRequest{Path: path}, &video); err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}

			line := fmt.Sprintf("imported %s (%s)", video.DisplayName, shortID(video.ID))
			if video.DurationSec > 0 {
				line += "  " + fmtSeconds(video.DurationSec)
			}
			if video.ProbeError != "" {
				line += "  probe failed: " + video.ProbeError
			}
			fmt.Println(line)
		}
		return nil
	},
}

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "List imported videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var resp api.VideosResponse
		if err := c.get(cmd.Context(), "/videos", &resp); err != nil {
			return err
		}

		if len(resp.Videos) == 0 {
			fmt.Println("no videos imported")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDURATION\tSIZE\tRESOLUTION\tIMPORTED")
		for _, v := range resp.Videos {
			res := ""
			if v.Width > 0 {
				res = fmt.Sprintf("%dx%d", v.Width, v.Height)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(v.ID), v.DisplayName, fmtSeconds(v.DurationSec),
				humanize.Bytes(uint64(v.Size)), res, fmtAge(v.ImportedAt))
		}
		return w.Flush()
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove VIDEO_ID",
	Short: "Remove a video and its scenes from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}
		if err := c.del(cmd.Context(), "/videos/"+args[0]); err != nil {
			return err
		}
		fmt.Println("removed", args[0])
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect VIDEO_ID",
	Short: "Detect scene changes in a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		body := api.DetectRequest{Threshold: detectThreshold, MinSceneLen: detectMinLen}
		var queued api.JobQueuedResponse
		if err := c.post(cmd.Context(), "/videos/"+args[0]+"/detect", body, &queued); err != nil {
			return err
		}

		if !detectWait {
			fmt.Println("queued detection job", queued.JobID)
			return nil
		}

		job, err := waitForJob(cmd.Context(), c, queued.JobID)
		if err != nil {
			return err
		}

		var result struct {
			Scenes int `json:"scenes"`
		}
		if json.Unmarshal([]byte(job.Result), &result) == nil && result.Scenes > 0 {
			fmt.Printf("detected %d scenes\n", result.Scenes)
		} else {
			fmt.Println("detection finished")
		}
		return nil
	},
}

var scenesCmd = &cobra.Command{
	Use:   "scenes VIDEO_ID",
	Short: "List detected scenes with their numbers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var resp api.ScenesResponse
		if err := c.get(cmd.Context(), "/videos/"+args[0]+"/scenes", &resp); err != nil {
			return err
		}

		if len(resp.Scenes) == 0 {
			fmt.Println("no scenes detected, run: auraclip detect", args[0])
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tSTART\tEND\tLENGTH\tSELECTED\tEXPORTED")
		for _, s := range resp.Scenes {
			sel := ""
			if s.Selected {
				sel = "yes"
			}
			exp := ""
			if s.Exported {
				exp = filepath.Base(s.ClipPath)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2fs\t%s\t%s\n",
				s.Number, fmtSeconds(s.StartSec), fmtSeconds(s.EndSec),
				s.EndSec-s.StartSec, sel, exp)
		}
		return w.Flush()
	},
}

var selectCmd = &cobra.Command{
	Use:   "select VIDEO_ID",
	Short: "Mark scenes for export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := parseSceneList(selectScenesArg)
		if err != nil {
			return err
		}
		if !selectAll && len(numbers) == 0 {
			return fmt.Errorf("pass --scenes or --all")
		}

		c, err := newAgentClient()
		if err != nil {
			return err
		}

		body := api.SelectScenesRequest{Numbers: numbers, All: selectAll, Selected: !selectDeselect}
		var resp api.SelectScenesResponse
		if err := c.post(cmd.Context(), "/videos/"+args[0]+"/scenes/select", body, &resp); err != nil {
			return err
		}

		verb := "selected"
		if selectDeselect {
			verb = "deselected"
		}
		fmt.Printf("%s %d scenes\n", verb, resp.Updated)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export VIDEO_ID",
	Short: "Export scenes as clips or an EDL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := parseSceneList(exportScenes)
		if err != nil {
			return err
		}

		outDir := exportOut
		if outDir != "" {
			if outDir, err = filepath.Abs(outDir); err != nil {
				return err
			}
		}

		c, err := newAgentClient()
		if err != nil {
			return err
		}

		body := api.ExportRequest{
			Format:       exportFormat,
			SceneNumbers: numbers,
			OutputDir:    outDir,
			CRF:          exportCRF,
			ProjectName:  exportProject,
			FrameRate:    exportFPS,
		}

		if strings.EqualFold(exportFormat, "edl") {
			var resp api.EDLResponse
			if err := c.post(cmd.Context(), "/videos/"+args[0]+"/export", body, &resp); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d clips)\n", resp.OutputPath, resp.ClipCount)
			return nil
		}

		var queued api.JobQueuedResponse
		if err := c.post(cmd.Context(), "/videos/"+args[0]+"/export", body, &queued); err != nil {
			return err
		}

		if !exportWait {
			fmt.Println("queued export job", queued.JobID)
			return nil
		}

		job, err := waitForJob(cmd.Context(), c, queued.JobID)
		if err != nil {
			return err
		}

		var result export.Result
		if json.Unmarshal([]byte(job.Result), &result) == nil && result.OutputDir != "" {
			fmt.Println(result.Message())
			for _, p := range result.ClipPaths {
				fmt.Println(" ", filepath.Base(p))
			}
			for _, skip := range result.Skipped {
				fmt.Printf("  skipped scene %d: %s\n", skip.Number, skip.Reason)
			}
		} else {
			fmt.Println("export finished")
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List background jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var resp api.JobsResponse
		if err := c.get(cmd.Context(), fmt.Sprintf("/jobs?limit=%d", jobsLimit), &resp); err != nil {
			return err
		}

		if len(resp.Jobs) == 0 {
			fmt.Println("no jobs")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPROGRESS\tCREATED\tERROR")
		for _, j := range resp.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
				shortID(j.ID), j.Type, j.Status, j.Progress, fmtAge(j.CreatedAt), j.Error)
		}
		return w.Flush()
	},
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage library folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var resp api.FoldersResponse
		if err := c.get(cmd.Context(), "/folders", &resp); err != nil {
			return err
		}

		if len(resp.Folders) == 0 {
			fmt.Println("no folders, add one with: auraclip folders add PATH")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPATH\tWATCH")
		for _, f := range resp.Folders {
			watch := ""
			if f.Watch {
				watch = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(f.ID), f.DisplayName, f.Path, watch)
		}
		return w.Flush()
	},
}

var foldersAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Register a library folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		c, err := newAgentClient()
		if err != nil {
			return err
		}

		body := api.AddFolderRequest{Path: path, DisplayName: folderName, Watch: folderWatch}
		var folder api.FolderResponse
		if err := c.post(cmd.Context(), "/folders", body, &folder); err != nil {
			return err
		}

		fmt.Printf("added %s (%s), scan it with: auraclip folders scan %s\n",
			folder.DisplayName, shortID(folder.ID), folder.ID)
		return nil
	},
}

var foldersRemoveCmd = &cobra.Command{
	Use:   "rm FOLDER_ID",
	Short: "Remove a folder registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}
		if err := c.del(cmd.Context(), "/folders/"+args[0]); err != nil {
			return err
		}
		fmt.Println("removed", args[0])
		return nil
	},
}

var foldersScanCmd = &cobra.Command{
	Use:   "scan FOLDER_ID",
	Short: "Import every video found in a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var queued api.JobQueuedResponse
		if err := c.post(cmd.Context(), "/folders/"+args[0]+"/scan", nil, &queued); err != nil {
			return err
		}

		if !scanWait {
			fmt.Println("queued scan job", queued.JobID)
			return nil
		}

		job, err := waitForJob(cmd.Context(), c, queued.JobID)
		if err != nil {
			return err
		}

		var result struct {
			Found    int `json:"found"`
			Imported int `json:"imported"`
		}
		if json.Unmarshal([]byte(job.Result), &result) == nil {
			fmt.Printf("imported %d of %d videos found\n", result.Imported, result.Found)
		} else {
			fmt.Println("scan finished")
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent user actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var resp api.EventsResponse
		if err := c.get(cmd.Context(), fmt.Sprintf("/events?limit=%d", eventsLimit), &resp); err != nil {
			return err
		}

		if len(resp.Events) == 0 {
			fmt.Println("no events recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tACTION\tVIDEO\tDETAIL")
		for _, e := range resp.Events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fmtAge(e.CreatedAt), e.Action, shortID(e.VideoID), e.Detail)
		}
		return w.Flush()
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish SCENE_ID",
	Short: "Upload an exported clip to the share endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAgentClient()
		if err != nil {
			return err
		}

		var queued api.JobQueuedResponse
		if err := c.post(cmd.Context(), "/clips/"+args[0]+"/publish", nil, &queued); err != nil {
			return err
		}

		if !publishWait {
			fmt.Println("queued publish job", queued.JobID)
			return nil
		}

		job, err := waitForJob(cmd.Context(), c, queued.JobID)
		if err != nil {
			return err
		}

		var receipt publish.Receipt
		if json.Unmarshal([]byte(job.Result), &receipt) == nil && receipt.URL != "" {
			fmt.Println("published:", receipt.URL)
		} else {
			fmt.Println("publish finished")
		}
		return nil
	},
}

// parseSceneList expands "1,3-5" into [1 3 4 5].
func parseSceneList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var numbers []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("bad scene range %q", part)
			}
			to, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || to < from {
				return nil, fmt.Errorf("bad scene range %q", part)
			}
			for n := from; n <= to; n++ {
				numbers = append(numbers, n)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad scene number %q", part)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func fmtSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func fmtAge(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return humanize.Time(t)
}

func toolLine(available bool, version string) string {
	if !available {
		return "missing"
	}
	if version != "" {
		return "ok (" + version + ")"
	}
	return "ok"
}
