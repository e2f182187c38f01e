package processors

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"videoReason/config"
	"videoReason/core"
	"videoReason/storage"
)

// MediaState is the staged file's readiness as reported by the
// reasoning model's media store.
type MediaState int

const (
	MediaStateProcessing MediaState = iota
	MediaStateActive
	MediaStateFailed
)

func (s MediaState) String() string {
	switch s {
	case MediaStateProcessing:
		return "PROCESSING"
	case MediaStateActive:
		return "ACTIVE"
	default:
		return "FAILED"
	}
}

// MediaFile is the handle to a staged media upload.
type MediaFile struct {
	Name  string
	URI   string
	State MediaState
}

// MediaReasoner stages media with the multimodal reasoning model and
// submits prompts over it.
type MediaReasoner interface {
	UploadMedia(ctx context.Context, path string) (MediaFile, error)
	MediaState(ctx context.Context, name string) (MediaFile, error)
	Reason(ctx context.Context, file MediaFile, prompt string) (string, error)
}

// GeminiReasoner implements MediaReasoner over the Gemini API.
type GeminiReasoner struct {
	client *genai.Client
	model  string
}

func NewGeminiReasoner(ctx context.Context, cfg *config.Settings) (*GeminiReasoner, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiReasoner{client: client, model: cfg.GeminiModel}, nil
}

func (g *GeminiReasoner) Close() error { return g.client.Close() }

func (g *GeminiReasoner) UploadMedia(ctx context.Context, path string) (MediaFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return MediaFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	file, err := g.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{MIMEType: "video/mp4"})
	if err != nil {
		return MediaFile{}, fmt.Errorf("upload media: %w", err)
	}
	return toMediaFile(file), nil
}

func (g *GeminiReasoner) MediaState(ctx context.Context, name string) (MediaFile, error) {
	file, err := g.client.GetFile(ctx, name)
	if err != nil {
		return MediaFile{}, fmt.Errorf("get media state: %w", err)
	}
	return toMediaFile(file), nil
}

func (g *GeminiReasoner) Reason(ctx context.Context, file MediaFile, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx,
		genai.FileData{MIMEType: "video/mp4", URI: file.URI},
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty model response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func toMediaFile(f *genai.File) MediaFile {
	state := MediaStateFailed
	switch f.State {
	case genai.FileStateProcessing:
		state = MediaStateProcessing
	case genai.FileStateActive:
		state = MediaStateActive
	}
	return MediaFile{Name: f.Name, URI: f.URI, State: state}
}

// SegmentAnalyzer runs one retrieved segment through download, media
// staging, the bounded readiness poll, and the reasoning prompt.
type SegmentAnalyzer struct {
	media    storage.MediaStore
	reasoner MediaReasoner

	pollInterval time.Duration
	pollCeiling  time.Duration
	sleep        func(time.Duration)
	tempDir      string
}

func NewSegmentAnalyzer(media storage.MediaStore, reasoner MediaReasoner, cfg *config.Settings) *SegmentAnalyzer {
	return &SegmentAnalyzer{
		media:        media,
		reasoner:     reasoner,
		pollInterval: cfg.PollInterval(),
		pollCeiling:  cfg.PollCeiling(),
		sleep:        time.Sleep,
		tempDir:      os.TempDir(),
	}
}

// Analyze never fails the batch: any internal error is folded into a
// degraded outcome whose summary names the cause.
func (a *SegmentAnalyzer) Analyze(ctx context.Context, seg core.RetrievedSegment) core.AnalysisOutcome {
	log.Printf("Analyzing segment %s", seg.ID)

	result, err := a.analyze(ctx, seg)
	if err != nil {
		log.Printf("Analysis failed for segment %s: %v", seg.ID, err)
		return core.DegradedAnalysis(seg, err.Error())
	}
	return core.AnalysisOutcome{Result: result}
}

func (a *SegmentAnalyzer) analyze(ctx context.Context, seg core.RetrievedSegment) (core.AnalysisResult, error) {
	var zero core.AnalysisResult

	// DOWNLOADING: scoped temp file, removed on every exit path
	tempPath := filepath.Join(a.tempDir, fmt.Sprintf("clip-%s.mp4", uuid.NewString()))
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: failed to clean up temp file %s: %v", tempPath, err)
		}
	}()

	log.Println("Downloading video for analysis...")
	if err := a.media.Download(ctx, seg.VideoURI, tempPath); err != nil {
		return zero, fmt.Errorf("download segment media: %w", err)
	}

	// UPLOADING
	log.Println("Uploading video to reasoning model...")
	file, err := a.reasoner.UploadMedia(ctx, tempPath)
	if err != nil {
		return zero, fmt.Errorf("stage media: %w", err)
	}

	// PROCESSING: bounded readiness poll
	waited := time.Duration(0)
	for file.State == MediaStateProcessing && waited < a.pollCeiling {
		a.sleep(a.pollInterval)
		waited += a.pollInterval
		file, err = a.reasoner.MediaState(ctx, file.Name)
		if err != nil {
			return zero, fmt.Errorf("poll media state: %w", err)
		}
		log.Printf("File state: %s (waited %s)", file.State, waited)
	}
	if file.State != MediaStateActive {
		return zero, fmt.Errorf("%w: state %s after %s", core.ErrMediaNotReady, file.State, waited)
	}

	// ACTIVE -> REASONING
	log.Println("Generating content analysis...")
	text, err := a.reasoner.Reason(ctx, file, analysisPrompt(seg))
	if err != nil {
		return zero, fmt.Errorf("reason over segment: %w", err)
	}

	// DONE
	return parseAnalysis(text, seg), nil
}

func analysisPrompt(seg core.RetrievedSegment) string {
	return fmt.Sprintf(`Analyze this video segment from %.1f to %.1f seconds.

Answer: what's being demonstrated? List:
- Key features shown
- Promises or commitments made
- Actions performed
- Brief body-language assessment of the presenter

Be specific and detailed about what you observe in this time segment.`, seg.StartTime, seg.EndTime)
}

// parseAnalysis keeps the full response as the summary. Structured
// extraction of promises/actions/body language is a known extension
// point; the structured fields stay empty until then.
func parseAnalysis(text string, seg core.RetrievedSegment) core.AnalysisResult {
	return core.AnalysisResult{
		ClipStart:       seg.StartTime,
		ClipEnd:         seg.EndTime,
		Summary:         text,
		Promises:        []string{},
		BodyLanguage:    "",
		ConfidenceScore: 0.8,
		Actions:         []string{},
	}
}
