package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"videomix/internal/config"
)

type settingOption struct {
	name string
	desc string
}

var resolutionInfo = []settingOption{
	{"1080x1920", "Portrait Full HD — the default for vertical feeds"},
	{"1920x1080", "Landscape Full HD"},
	{"720x1280", "Portrait HD — smaller files, faster encodes"},
	{"1280x720", "Landscape HD"},
}

var bitrateInfo = []settingOption{
	{"2000", "Low — fast uploads, visible compression"},
	{"3000", "Modest — acceptable for 720p"},
	{"5000", "Good — solid 1080p, the default"},
	{"8000", "High — strong 1080p"},
	{"12000", "Very high — diminishing returns for most sources"},
	{"20000", "Maximum — archive quality"},
}

const bitrateNote = "Acts as a ceiling: software encodes target constant\n" +
	"quality and cap at this rate, hardware encoders use it\n" +
	"as the working bitrate."

var transitionInfo = []settingOption{
	{"none", "Hard cut, no effect between scenes"},
	{"random", "A different effect at every boundary"},
	{"fade", "Crossfade video and audio"},
	{"mirror_flip", "Mirror sweep across the boundary"},
	{"hue_shift", "Hue rotation blends the scenes"},
	{"pixelate", "Mosaic blocks dissolve into the next scene"},
	{"spin_zoom", "Rotate and punch in on the outgoing scene"},
	{"reverse_flashback", "Replays the tail backwards with a brightness pulse"},
	{"speed_ramp", "Double-speed handoff, audio tempo follows"},
	{"split_screen", "Wipe reveal from the side"},
}

var transitionDurationInfo = []settingOption{
	{"0.3", "Quick"},
	{"0.5", "Snappy — the default"},
	{"1.0", "Relaxed"},
	{"1.5", "Slow"},
}

const transitionDurationNote = "Each boundary clamps to half of the shorter adjacent\n" +
	"scene, so short scenes get shorter transitions\n" +
	"automatically."

var sceneDurationInfo = []settingOption{
	{"3", "Short scenes"},
	{"5", "Default"},
	{"8", "Longer scenes"},
	{"10", "Maximum dwell per scene"},
}

const sceneDurationNote = "Only applies to scenes without narration audio.\n" +
	"When narration exists its length sets the scene\n" +
	"duration instead."

var countInfo = []settingOption{
	{"1", "Single output"},
	{"3", "Small batch"},
	{"5", "Batch"},
	{"10", "Large batch"},
	{"20", "Bulk run"},
	{"50", "Overnight run"},
}

const countNote = "Outputs render in sequence. A failed output is\n" +
	"skipped and the batch continues with the rest."

var hardwareInfo = []settingOption{
	{"auto", "Probe NVENC, QuickSync and AMF; fall back to\nsoftware when none work"},
	{"none", "Always encode with libx264"},
}

var presetInfo = []settingOption{
	{"fast", "Quickest encode, slightly larger files"},
	{"medium", "Balanced speed and compression"},
	{"slow", "Better compression, noticeably slower"},
}

const presetNote = "Applies to the software encoder. Hardware encoders\n" +
	"use their own preset ladder chosen during encoder\n" +
	"negotiation."

var voiceVolumeInfo = []settingOption{
	{"0.5", "Quieter narration"},
	{"0.8", "Slightly under source level"},
	{"1.0", "Source level — the default"},
	{"1.5", "Boosted"},
	{"2.0", "Maximum boost"},
}

var bgmVolumeInfo = []settingOption{
	{"0.1", "Barely there"},
	{"0.2", "Background bed"},
	{"0.3", "Present"},
	{"0.5", "Prominent — the default"},
}

var watermarkInfo = []settingOption{
	{"disabled", "Skip the overlay pass entirely"},
	{"enabled", "Burn a per-output timestamp counter into the\nvideo in a second pass"},
}

var positionInfo = []settingOption{
	{config.PositionBottomRight, "Default corner"},
	{config.PositionBottomLeft, "Clear of end cards"},
	{config.PositionTopRight, "Above captions"},
	{config.PositionTopLeft, "Out of the action"},
}

type carouselRow struct {
	label   string
	options []string
	current int
}

type settingsEditModel struct {
	rows      []carouselRow
	focused   int
	done      bool
	cancelled bool
	base      config.Settings
}

func newSettingsEditModel(current config.Settings) settingsEditModel {
	return settingsEditModel{
		rows: []carouselRow{
			row("Resolution", optionNames(resolutionInfo), current.Video.Resolution),
			row("Bitrate (kbps)", optionNames(bitrateInfo), strconv.Itoa(current.Video.BitrateKbps)),
			row("FPS", []string{"24", "30", "60"}, strconv.Itoa(current.Video.FPS)),
			row("Transition", config.KnownTransitions, current.Transition.Name),
			row("Transition sec", optionNames(transitionDurationInfo), formatSetting(current.Transition.DurationSec)),
			row("Scene sec", optionNames(sceneDurationInfo), formatSetting(current.Output.SceneDurationSec)),
			row("Outputs", optionNames(countInfo), strconv.Itoa(current.Output.Count)),
			row("Hardware", optionNames(hardwareInfo), current.Encode.HardwareAccel),
			row("Preset", optionNames(presetInfo), current.Encode.Preset),
			row("Voice volume", optionNames(voiceVolumeInfo), formatSetting(current.Audio.VoiceVolume)),
			row("BGM volume", optionNames(bgmVolumeInfo), formatSetting(current.Audio.BGMVolume)),
			row("Watermark", optionNames(watermarkInfo), onOff(current.Watermark.Enabled)),
			row("Position", optionNames(positionInfo), current.Watermark.Position),
		},
		base: current,
	}
}

// row builds a carouselRow preselected on the current value. A current
// value outside the stock options is prepended so editing never
// silently discards a hand-tuned setting.
func row(label string, options []string, current string) carouselRow {
	if current != "" && !containsOption(options, current) {
		options = append([]string{current}, options...)
	}
	idx := 0
	for i, o := range options {
		if o == current {
			idx = i
			break
		}
	}
	return carouselRow{label: label, options: options, current: idx}
}

func optionNames(items []settingOption) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	return names
}

func containsOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// formatSetting renders a float without trailing zeros.
func formatSetting(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (m settingsEditModel) Init() tea.Cmd {
	return nil
}

func (m settingsEditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.focused > 0 {
			m.focused--
		}
	case "down", "j":
		if m.focused < len(m.rows)-1 {
			m.focused++
		}
	case "left", "h":
		r := m.rows[m.focused]
		r.current = (r.current - 1 + len(r.options)) % len(r.options)
		m.rows[m.focused] = r
	case "right", "l":
		r := m.rows[m.focused]
		r.current = (r.current + 1) % len(r.options)
		m.rows[m.focused] = r
	case "enter":
		m.done = true
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m settingsEditModel) View() string {
	if m.cancelled {
		return FaintStyle.Render("  cancelled") + "\n"
	}

	if m.done {
		var sb strings.Builder
		sb.WriteString("\n")
		for _, r := range m.rows {
			sb.WriteString(fmt.Sprintf("%s %s\n",
				FaintStyle.Render(fmt.Sprintf("  %-16s", r.label)),
				r.options[r.current],
			))
		}
		sb.WriteString("\n")
		return sb.String()
	}

	focused := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))

	var sb strings.Builder
	sb.WriteString("\n")
	for i, r := range m.rows {
		prefix := "  "
		label := FaintStyle.Render(fmt.Sprintf("%-16s", r.label))
		if i == m.focused {
			prefix = "▸ "
			label = focused.Render(fmt.Sprintf("%-16s", r.label))
		}
		sb.WriteString(fmt.Sprintf("%s%s ←  %-20s→\n", prefix, label, r.options[r.current]))
	}

	sb.WriteString("\n")
	sb.WriteString(m.helpPanel())
	sb.WriteString("\n")
	sb.WriteString(FaintStyle.Render("  [↑↓] Navigate  [←→] Change  [Enter] Save  [Esc] Cancel"))
	sb.WriteString("\n")
	return sb.String()
}

func (m settingsEditModel) helpPanel() string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		BorderForeground(lipgloss.Color("8"))

	current := m.rows[m.focused].options[m.rows[m.focused].current]
	switch m.focused {
	case 0:
		return panel.Render(listPanel(current, resolutionInfo, ""))
	case 1:
		return panel.Render(listPanel(current, bitrateInfo, bitrateNote))
	case 2:
		return panel.Render(FaintStyle.Render("  Source clips are resampled to this frame rate."))
	case 3:
		return panel.Render(listPanel(current, transitionInfo, ""))
	case 4:
		return panel.Render(listPanel(current, transitionDurationInfo, transitionDurationNote))
	case 5:
		return panel.Render(listPanel(current, sceneDurationInfo, sceneDurationNote))
	case 6:
		return panel.Render(listPanel(current, countInfo, countNote))
	case 7:
		return panel.Render(listPanel(current, hardwareInfo, ""))
	case 8:
		return panel.Render(listPanel(current, presetInfo, presetNote))
	case 9:
		return panel.Render(listPanel(current, voiceVolumeInfo, ""))
	case 10:
		return panel.Render(listPanel(current, bgmVolumeInfo, ""))
	case 11:
		return panel.Render(listPanel(current, watermarkInfo, ""))
	case 12:
		return panel.Render(listPanel(current, positionInfo, ""))
	}
	return ""
}

func listPanel(current string, items []settingOption, note string) string {
	bold := lipgloss.NewStyle().Bold(true)
	var sb strings.Builder
	for _, it := range items {
		prefix, name := "  ", FaintStyle.Render(fmt.Sprintf("%-18s", it.name))
		if it.name == current {
			prefix, name = "▸ ", bold.Render(fmt.Sprintf("%-18s", it.name))
		}
		for j, line := range strings.Split(it.desc, "\n") {
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%s%s %s\n", prefix, name, line))
			} else {
				sb.WriteString(fmt.Sprintf("                     %s\n", line))
			}
		}
	}
	if note != "" {
		sb.WriteString("\n")
		for _, line := range strings.Split(note, "\n") {
			sb.WriteString(FaintStyle.Render("  "+line) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// result applies the carousel values onto a copy of the base settings.
func (m settingsEditModel) result() (config.Settings, bool) {
	if m.cancelled {
		return m.base, false
	}
	s := m.base
	value := func(i int) string { return m.rows[i].options[m.rows[i].current] }

	s.Video.Resolution = value(0)
	if v, err := strconv.Atoi(value(1)); err == nil {
		s.Video.BitrateKbps = v
	}
	if v, err := strconv.Atoi(value(2)); err == nil {
		s.Video.FPS = v
	}
	s.Transition.Name = value(3)
	if v, err := strconv.ParseFloat(value(4), 64); err == nil {
		s.Transition.DurationSec = v
	}
	if v, err := strconv.ParseFloat(value(5), 64); err == nil {
		s.Output.SceneDurationSec = v
	}
	if v, err := strconv.Atoi(value(6)); err == nil {
		s.Output.Count = v
	}
	s.Encode.HardwareAccel = value(7)
	s.Encode.Preset = value(8)
	if v, err := strconv.ParseFloat(value(9), 64); err == nil {
		s.Audio.VoiceVolume = v
	}
	if v, err := strconv.ParseFloat(value(10), 64); err == nil {
		s.Audio.BGMVolume = v
	}
	s.Watermark.Enabled = value(11) == "enabled"
	s.Watermark.Position = value(12)
	return s, true
}

// RunSettingsEdit opens the interactive settings carousel and returns
// the edited settings. saved is false when the user cancelled.
func RunSettingsEdit(w io.Writer, current config.Settings) (edited config.Settings, saved bool, err error) {
	p := tea.NewProgram(newSettingsEditModel(current), tea.WithOutput(w))
	finalModel, err := p.Run()
	if err != nil {
		return current, false, err
	}
	edited, saved = finalModel.(settingsEditModel).result()
	return edited, saved, nil
}
