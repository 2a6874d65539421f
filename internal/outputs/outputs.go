package outputs

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hmngo/vidcast/internal/media"
)

// artifact categories recognized by the manager
type FileType string

const (
	TypeVideo FileType = "video"
	TypeImage FileType = "image"
	TypeAudio FileType = "audio"
	TypeText  FileType = "text"
)

// one recorded artifact inside a run
type Step struct {
	Name      string    `json:"name"`
	File      string    `json:"file"`
	Backup    string    `json:"backup,omitempty"`
	SizeMB    float64   `json:"size_mb"`
	FileType  FileType  `json:"file_type"`
	Timestamp time.Time `json:"timestamp"`
}

// bookkeeping for a single run folder
type Run struct {
	Number    int       `json:"run_number"`
	Name      string    `json:"run_name"`
	Folder    string    `json:"folder"`
	StartedAt time.Time `json:"timestamp_start"`
	Steps     []Step    `json:"steps"`
}

func (r *Run) IntermediateDir() string {
	return filepath.Join(r.Folder, "intermediate")
}

func (r *Run) FinalDir() string {
	return filepath.Join(r.Folder, "final")
}

func (r *Run) ReferenceDir() string {
	return filepath.Join(r.Folder, "reference")
}

// Manager owns the output tree and records what each run produced
type Manager struct {
	baseDir     string
	runs        map[int]*Run
	totalFiles  int
	totalSizeMB float64
}

func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		baseDir = "outputs"
	}

	dirs := []string{
		baseDir,
		filepath.Join(baseDir, "intermediate"),
		filepath.Join(baseDir, "final"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return &Manager{
		baseDir: baseDir,
		runs:    make(map[int]*Run),
	}, nil
}

func (m *Manager) BaseDir() string {
	return m.baseDir
}

var runFolderRegex = regexp.MustCompile(`^run_(\d+)_`)

// next unused run number, scanning both this session and folders left by
// previous ones
func (m *Manager) nextRunNumber() int {
	next := 1

	entries, err := os.ReadDir(m.baseDir)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			match := runFolderRegex.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			if n, err := strconv.Atoi(match[1]); err == nil && n >= next {
				next = n + 1
			}
		}
	}

	for _, run := range m.runs {
		if run.Number >= next {
			next = run.Number + 1
		}
	}

	return next
}

// CreateRun allocates the next run folder with intermediate, final and
// reference subdirectories.
func (m *Manager) CreateRun(name string) (*Run, error) {
	number := m.nextRunNumber()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	folder := filepath.Join(m.baseDir, fmt.Sprintf("run_%02d_%s", number, slug))

	for _, sub := range []string{"intermediate", "final", "reference"} {
		if err := os.MkdirAll(filepath.Join(folder, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}

	run := &Run{
		Number:    number,
		Name:      name,
		Folder:    folder,
		StartedAt: time.Now(),
	}
	m.runs[number] = run

	return run, nil
}

func extensionFor(fileType FileType, srcPath string) string {
	switch fileType {
	case TypeVideo:
		return ".mp4"
	case TypeImage:
		return ".png"
	case TypeText:
		return ".txt"
	case TypeAudio:
		if ext := filepath.Ext(srcPath); ext != "" {
			return ext
		}
		return ".wav"
	default:
		return filepath.Ext(srcPath)
	}
}

// SaveFinal copies the finished artifact into the run's final folder under a
// deterministic name, mirrors it into the shared final bucket, and writes a
// timestamped backup next to the main copy.
func (m *Manager) SaveFinal(
	run *Run,
	srcPath string,
	fileType FileType,
) (string, error) {
	if run == nil {
		return "", fmt.Errorf("run is required")
	}
	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", srcPath)
	}

	ext := extensionFor(fileType, srcPath)
	mainName := fmt.Sprintf("run_%02d_final%s", run.Number, ext)
	mainPath := filepath.Join(run.FinalDir(), mainName)

	if err := copyFile(srcPath, mainPath); err != nil {
		return "", fmt.Errorf("failed to save final file: %w", err)
	}

	sharedPath := filepath.Join(m.baseDir, "final", mainName)
	if err := copyFile(srcPath, sharedPath); err != nil {
		return "", fmt.Errorf("failed to save shared copy: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupName := fmt.Sprintf("run_%02d_final_%s%s", run.Number, timestamp, ext)
	backupPath := filepath.Join(run.FinalDir(), backupName)
	if err := copyFile(srcPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to save backup file: %w", err)
	}

	info, err := os.Stat(mainPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat final file: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)

	run.Steps = append(run.Steps, Step{
		Name:      fmt.Sprintf("Final %s", fileType),
		File:      mainPath,
		Backup:    backupPath,
		SizeMB:    sizeMB,
		FileType:  fileType,
		Timestamp: time.Now(),
	})
	m.totalFiles++
	m.totalSizeMB += sizeMB

	return mainPath, nil
}

// AddStep records an intermediate artifact for the run summary.
func (m *Manager) AddStep(run *Run, name, filePath string, fileType FileType) {
	if run == nil {
		return
	}

	sizeMB := 0.0
	if info, err := os.Stat(filePath); err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
	}

	run.Steps = append(run.Steps, Step{
		Name:      name,
		File:      filePath,
		SizeMB:    sizeMB,
		FileType:  fileType,
		Timestamp: time.Now(),
	})
	m.totalFiles++
	m.totalSizeMB += sizeMB
}

// metadata document written next to a final artifact
type Metadata struct {
	RunInfo      RunInfo        `json:"run_info"`
	FileInfo     any            `json:"file_info"`
	Requirements map[string]any `json:"requirements_check"`
}

type RunInfo struct {
	RunNumber int       `json:"run_number"`
	RunName   string    `json:"run_name"`
	FileType  FileType  `json:"file_type"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteMetadata introspects the artifact and writes metadata.json into the
// run's final folder.
func (m *Manager) WriteMetadata(
	run *Run,
	filePath string,
	fileType FileType,
) (string, error) {
	if run == nil {
		return "", fmt.Errorf("run is required")
	}

	doc := Metadata{
		RunInfo: RunInfo{
			RunNumber: run.Number,
			RunName:   run.Name,
			FileType:  fileType,
			Timestamp: time.Now(),
		},
		FileInfo:     fileInfo(filePath, fileType),
		Requirements: requirementsFor(fileType),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	metadataPath := filepath.Join(run.FinalDir(), "metadata.json")
	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	return metadataPath, nil
}

func fileInfo(filePath string, fileType FileType) any {
	switch fileType {
	case TypeVideo, TypeAudio:
		probe, err := media.Probe(filePath)
		if err != nil {
			return sizeOnlyInfo(filePath)
		}
		return probe
	case TypeImage:
		return imageInfo(filePath)
	case TypeText:
		return textInfo(filePath)
	default:
		return sizeOnlyInfo(filePath)
	}
}

func imageInfo(filePath string) any {
	f, err := os.Open(filePath)
	if err != nil {
		return sizeOnlyInfo(filePath)
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return sizeOnlyInfo(filePath)
	}

	return map[string]any{
		"width":      cfg.Width,
		"height":     cfg.Height,
		"format":     format,
		"size_bytes": fileSize(filePath),
	}
}

func textInfo(filePath string) any {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return sizeOnlyInfo(filePath)
	}
	content := string(data)

	return map[string]any{
		"size_bytes": len(data),
		"char_count": utf8.RuneCountInString(content),
		"line_count": countLines(content),
		"encoding":   "UTF-8",
	}
}

func sizeOnlyInfo(filePath string) any {
	return map[string]any{"size_bytes": fileSize(filePath)}
}

func fileSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// fixed per-type expectations recorded alongside the introspected values
func requirementsFor(fileType FileType) map[string]any {
	switch fileType {
	case TypeVideo:
		return map[string]any{
			"format":     "MP4",
			"resolution": "1920x1080",
			"has_audio":  true,
		}
	case TypeImage:
		return map[string]any{
			"format":  "PNG",
			"quality": "high",
		}
	case TypeAudio:
		return map[string]any{
			"format":      "MP3/WAV",
			"sample_rate": "24000Hz",
			"channels":    "mono",
		}
	case TypeText:
		return map[string]any{
			"format":   "TXT",
			"encoding": "UTF-8",
		}
	default:
		return map[string]any{}
	}
}

// Summary formats the output report; a non-positive run number reports every
// run this session created.
func (m *Manager) Summary(runNumber int) string {
	divider := strings.Repeat("=", 50)

	var sb strings.Builder
	sb.WriteString("\n" + divider + "\n")
	sb.WriteString("OUTPUT SUMMARY\n")
	sb.WriteString(divider + "\n")

	if run, ok := m.runs[runNumber]; ok {
		sb.WriteString(fmt.Sprintf("\n%s (run %d)\n", run.Folder, run.Number))
		sb.WriteString(fmt.Sprintf("Files: %d\n", len(run.Steps)))
	} else {
		sb.WriteString(fmt.Sprintf("Total files: %d\n", m.totalFiles))
		sb.WriteString(fmt.Sprintf("Total size: %.2f MB\n", m.totalSizeMB))

		numbers := make([]int, 0, len(m.runs))
		for n := range m.runs {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		for _, n := range numbers {
			run := m.runs[n]
			sb.WriteString(fmt.Sprintf("%s (%s)\n", run.Folder, run.Name))
		}
	}

	sb.WriteString(divider + "\n")
	return sb.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
