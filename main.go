package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"yashubustudio/labeltune/categorizer"
	"yashubustudio/labeltune/internal/workspace"
)

func main() {
	fyneApp := app.NewWithID("yashubustudio.labeltune")
	win := fyneApp.NewWindow("Labeltune (ファインチューニング支援)")
	win.Resize(fyne.NewSize(1024, 768))

	cfg, err := categorizer.LoadConfig("")
	if err != nil {
		showFatalError(win, fmt.Errorf("設定の読み込みに失敗しました: %w", err))
		return
	}

	loggerBinding := binding.NewString()
	logCapture := newLogCapture(loggerBinding, 300)
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"},
		zerolog.ConsoleWriter{Out: logCapture, TimeFormat: "15:04:05", NoColor: true},
	)).Level(level).With().Timestamp().Logger()

	ctx := context.Background()
	var cfgMu sync.Mutex
	currentConfig := func() categorizer.Config {
		cfgMu.Lock()
		defer cfgMu.Unlock()
		return cfg.Clone()
	}
	saveConfig := func() {
		if err := categorizer.SaveConfig("", currentConfig()); err != nil {
			logger.Error().Err(err).Msg("設定の保存に失敗しました")
		}
	}
	defer saveConfig()

	// Artifact status
	var refresh func()
	statusBindings := make(map[string]binding.String)
	statusRows := container.NewVBox()
	for _, a := range workspace.New(cfg).Status() {
		b := binding.NewString()
		statusBindings[a.Name] = b
		name := a.Name
		importBtn := widget.NewButton("取込", func() {
			importArtifact(win, currentConfig(), name, &logger, refresh)
		})
		if name == workspace.ArtifactModel || name == workspace.ArtifactPredictions || name == workspace.ArtifactReport {
			importBtn.Hide()
		}
		statusRows.Add(container.NewBorder(nil, nil, widget.NewLabel(name), importBtn, widget.NewLabelWithData(b)))
	}

	statusLabel := widget.NewLabel("準備完了")
	progress := widget.NewProgressBar()
	reportView := widget.NewMultiLineEntry()
	reportView.Wrapping = fyne.TextWrapWord
	var lastReport categorizer.Report
	var haveReport bool

	prepareBtn := widget.NewButton("推論入力を作成", nil)
	trainBtn := widget.NewButton("学習", nil)
	inferBtn := widget.NewButton("推論", nil)
	validateBtn := widget.NewButton("検証", nil)
	saveReportBtn := widget.NewButton("検証結果を保存", nil)
	busy := false

	refresh = func() {
		ws := workspace.New(currentConfig())
		for _, a := range ws.Status() {
			text := "未検出: " + a.Path
			if a.Exists {
				text = fmt.Sprintf("検出: %s (%s)", a.Path, a.ModTime.Format("2006-01-02 15:04"))
			}
			_ = statusBindings[a.Name].Set(text)
		}
		for stage, btn := range map[workspace.Stage]*widget.Button{
			workspace.StagePrepare:  prepareBtn,
			workspace.StageTrain:    trainBtn,
			workspace.StageInfer:    inferBtn,
			workspace.StageValidate: validateBtn,
		} {
			if !busy && ws.Ready(stage) == nil {
				btn.Enable()
			} else {
				btn.Disable()
			}
		}
		if haveReport {
			saveReportBtn.Enable()
		} else {
			saveReportBtn.Disable()
		}
	}

	// runStage executes work off the UI thread with every stage button disabled.
	runStage := func(label string, work func() (string, error)) {
		busy = true
		statusLabel.SetText(label + "中...")
		refresh()
		go func() {
			msg, err := work()
			fyne.Do(func() {
				busy = false
				if err != nil {
					logger.Error().Err(err).Str("stage", label).Msg("処理に失敗しました")
					statusLabel.SetText("エラーが発生しました")
					showError(win, err)
				} else {
					statusLabel.SetText(msg)
				}
				refresh()
			})
		}()
	}

	rawCheck := widget.NewCheck("スコアを正規化しない", func(checked bool) {
		cfgMu.Lock()
		cfg.RawScores = checked
		cfgMu.Unlock()
		saveConfig()
	})
	rawCheck.SetChecked(cfg.RawScores)
	topOnlyCheck := widget.NewCheck("最上位ラベルのみ出力", func(checked bool) {
		cfgMu.Lock()
		cfg.TopLabelOnly = checked
		cfgMu.Unlock()
		saveConfig()
	})
	topOnlyCheck.SetChecked(cfg.TopLabelOnly)

	prepareBtn.OnTapped = func() {
		runStage("推論入力作成", func() (string, error) {
			local := currentConfig()
			n, err := workspace.New(local).Prepare()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d段落を %s に書き出しました", n, local.InferInputPath), nil
		})
	}

	trainBtn.OnTapped = func() {
		progress.SetValue(0)
		runStage("学習", func() (string, error) {
			local := currentConfig()
			ws := workspace.New(local)
			if backup, err := ws.BackupModel(); err != nil {
				return "", err
			} else if backup != "" {
				logger.Info().Str("backup", backup).Msg("既存モデルを退避しました")
			}
			err := workspace.NewTrainer(local.Trainer, &logger).Run(ctx, func(p workspace.Progress) {
				if p.Percent < 0 {
					return
				}
				fyne.Do(func() { progress.SetValue(float64(p.Percent) / 100) })
			})
			if err != nil {
				return "", err
			}
			return "学習が完了しました", nil
		})
	}

	inferBtn.OnTapped = func() {
		runStage("推論", func() (string, error) {
			local := currentConfig()
			n, err := runInference(ctx, local, &logger)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d件の推論結果を %s に書き出しました", n, local.PredictionsPath), nil
		})
	}

	validateBtn.OnTapped = func() {
		runStage("検証", func() (string, error) {
			report, err := runValidation(currentConfig())
			if err != nil {
				return "", err
			}
			text := report.String()
			fyne.Do(func() {
				lastReport, haveReport = report, true
				reportView.SetText(text)
			})
			logger.Info().
				Int("matched", report.MatchedCount).
				Int("mistakes", report.MistakeCount).
				Msg("検証が完了しました")
			return fmt.Sprintf("正解率 %.2f%%", report.CorrectPercentage), nil
		})
	}

	saveReportBtn.OnTapped = func() {
		if !haveReport {
			return
		}
		path := currentConfig().ReportPath
		var buf bytes.Buffer
		if err := lastReport.Encode(&buf, categorizer.FormatText); err != nil {
			showError(win, err)
			return
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			showError(win, fmt.Errorf("検証結果の保存に失敗しました: %w", err))
			return
		}
		logger.Info().Str("path", path).Msg("検証結果を保存しました")
		refresh()
	}

	refreshBtn := widget.NewButton("状態を更新", refresh)

	logLabel := widget.NewLabelWithData(loggerBinding)
	logLabel.Wrapping = fyne.TextWrapWord
	logContainer := container.NewVScroll(logLabel)
	logContainer.SetMinSize(fyne.NewSize(200, 120))

	controls := container.NewVBox(
		widget.NewLabel("ファイル"),
		statusRows,
		refreshBtn,
		widget.NewSeparator(),
		container.NewHBox(prepareBtn, trainBtn),
		progress,
		widget.NewSeparator(),
		container.NewHBox(inferBtn, rawCheck, topOnlyCheck),
		container.NewHBox(validateBtn, saveReportBtn),
		statusLabel,
		widget.NewSeparator(),
		widget.NewLabel("ログ"),
		logContainer,
	)

	root := container.NewHSplit(controls, reportView)
	root.Offset = 0.45
	win.SetContent(root)
	refresh()

	win.ShowAndRun()
}

func runInference(ctx context.Context, cfg categorizer.Config, logger *zerolog.Logger) (int, error) {
	table, err := categorizer.LoadRuleTable(cfg.RulesPath)
	if err != nil {
		return 0, err
	}
	paragraphs, err := categorizer.ReadParagraphs(cfg.InferInputPath, "")
	if err != nil {
		return 0, err
	}
	tel := categorizer.NewTelemetry()
	classifier, err := categorizer.NewClassifier(cfg.Classifier, table, tel)
	if err != nil {
		return 0, fmt.Errorf("分類器の初期化に失敗しました: %w", err)
	}
	service, err := categorizer.NewService(classifier, table, cfg, tel, logger)
	if err != nil {
		return 0, errors.Join(err, classifier.Close())
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn().Err(err).Msg("分類器の解放に失敗しました")
		}
	}()
	preds, err := service.Infer(ctx, paragraphs)
	if err != nil {
		return 0, err
	}
	if err := categorizer.WritePredictions(cfg.PredictionsPath, preds); err != nil {
		return 0, err
	}
	return len(preds), nil
}

func runValidation(cfg categorizer.Config) (categorizer.Report, error) {
	table, err := categorizer.LoadRuleTable(cfg.RulesPath)
	if err != nil {
		return categorizer.Report{}, err
	}
	truth, err := categorizer.LoadGroundTruth(cfg.GroundTruthPath)
	if err != nil {
		return categorizer.Report{}, err
	}
	preds, err := categorizer.LoadPredictions(cfg.PredictionsPath)
	if err != nil {
		return categorizer.Report{}, err
	}
	return categorizer.Validate(preds, truth, table)
}

// importArtifact copies a user-chosen file into the workspace, asking before
// replacing an existing one.
func importArtifact(win fyne.Window, cfg categorizer.Config, name string, logger *zerolog.Logger, done func()) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			showError(win, err)
			return
		}
		if rc == nil {
			return
		}
		src := rc.URI().Path()
		rc.Close()
		ws := workspace.New(cfg)
		copyFile := func(overwrite bool) {
			if err := ws.Import(name, src, overwrite); err != nil {
				showError(win, err)
				return
			}
			logger.Info().Str("artifact", name).Str("source", src).Msg("ファイルを取り込みました")
			done()
		}
		err = ws.Import(name, src, false)
		if errors.Is(err, os.ErrExist) {
			dialog.ShowConfirm("ファイルの置き換え", "既存のファイルを置き換えますか？", func(ok bool) {
				if ok {
					copyFile(true)
				}
			}, win)
			return
		}
		if err != nil {
			showError(win, err)
			return
		}
		logger.Info().Str("artifact", name).Str("source", src).Msg("ファイルを取り込みました")
		done()
	}, win)
	switch name {
	case workspace.ArtifactInferInput:
		fd.SetFilter(storage.NewExtensionFileFilter([]string{".md", ".txt", ".csv", ".tsv"}))
	default:
		fd.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	}
	fd.Show()
}

func showFatalError(win fyne.Window, err error) {
	content := widget.NewLabel(err.Error())
	win.SetContent(content)
	dialog.ShowError(err, win)
	win.ShowAndRun()
}

func showError(win fyne.Window, err error) {
	if err != nil {
		dialog.ShowError(err, win)
	}
}

type logCapture struct {
	mu      sync.Mutex
	lines   []string
	limit   int
	binding binding.String
}

var _ io.Writer = (*logCapture)(nil)

func newLogCapture(b binding.String, limit int) *logCapture {
	return &logCapture{binding: b, limit: limit}
}

func (l *logCapture) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	text := strings.ReplaceAll(string(p), "\r\n", "\n")
	for _, part := range strings.Split(text, "\n") {
		if part == "" {
			continue
		}
		l.lines = append(l.lines, part)
	}
	if len(l.lines) > l.limit {
		l.lines = l.lines[len(l.lines)-l.limit:]
	}
	_ = l.binding.Set(strings.Join(l.lines, "\n"))
	return len(p), nil
}
