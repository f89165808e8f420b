// Package visual provides the interface analysis agent. Analyses are
// simulated: the handler scores reported issues instead of inspecting
// real screens, and keeps a bounded history for pattern detection.
package visual

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/messaging"
)

// Task types handled by the visual agent.
const (
	TaskAnalyzeInterface = "analyze_interface"
	TaskOptimizeUI       = "optimize_ui"
	TaskDetectIssues     = "detect_issues"
)

const (
	// maxHistory bounds the retained analyses.
	maxHistory = 50
	// recentWindow is how far back detect_issues looks.
	recentWindow = 5
	// minAnalyses is the sample size needed before patterns are reported.
	minAnalyses = 3
	// minOccurrences is how often an issue type must repeat to count as
	// a pattern.
	minOccurrences = 2
	// alertScore is the ux_score below which an analysis raises a
	// critical alert.
	alertScore = 0.5
)

// Issue is a single problem found during interface analysis.
type Issue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

// Analysis is one retained analyze_interface outcome.
type Analysis struct {
	ElementsDetected int       `json:"elements_detected"`
	UXScore          float64   `json:"ux_score"`
	Issues           []Issue   `json:"issues_found"`
	Suggestions      []string  `json:"suggestions"`
	Timestamp        time.Time `json:"timestamp"`
}

// Handler analyzes and optimizes user interfaces. ProcessTask may run
// concurrently with other calls, so the analysis history is mutex-guarded.
type Handler struct {
	mu      sync.Mutex
	history []Analysis
}

// New returns a visual agent handler.
func New() *Handler {
	return &Handler{}
}

func (h *Handler) Capabilities() []agent.Capability {
	return []agent.Capability{
		{
			Name:             agent.CapScreenshotAnalysis,
			Description:      "analyze screen content and interface state",
			InputTypes:       []string{"image_data", "ui_state"},
			OutputTypes:      []string{"analysis_result", "ui_issues"},
			PerformanceScore: 0.9,
		},
		{
			Name:             agent.CapUIOptimization,
			Description:      "suggest interface layout improvements",
			InputTypes:       []string{"ui_issues", "user_feedback"},
			OutputTypes:      []string{"ui_improvements", "optimization_plan"},
			PerformanceScore: 0.85,
		},
	}
}

func (h *Handler) ProcessTask(ctx context.Context, task agent.Task) (agent.Result, error) {
	switch task.Type {
	case TaskAnalyzeInterface:
		return h.analyzeInterface(task)
	case TaskOptimizeUI:
		return h.optimizeUI(task)
	case TaskDetectIssues:
		return h.detectIssues()
	default:
		return agent.Result{}, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}
}

// analyzeInterface simulates a screen analysis. The baseline finding is a
// single medium accessibility issue at score 0.85; issues reported through
// the payload lower the score further.
func (h *Handler) analyzeInterface(task agent.Task) (agent.Result, error) {
	issues := []Issue{{
		Type:        "accessibility",
		Severity:    "medium",
		Description: "insufficient text contrast",
	}}
	reported := issuesFromPayload(task.Payload["reported_issues"])
	issues = append(issues, reported...)

	score := 0.85
	for _, issue := range reported {
		switch issue.Severity {
		case "high":
			score -= 0.25
		case "medium":
			score -= 0.05
		default:
			score -= 0.01
		}
	}
	if score < 0 {
		score = 0
	}

	analysis := Analysis{
		ElementsDetected: 5,
		UXScore:          score,
		Issues:           issues,
		Suggestions: []string{
			"increase text contrast",
			"add alternative text for images",
			"improve keyboard navigation",
		},
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	h.history = append(h.history, analysis)
	if len(h.history) > maxHistory {
		h.history = h.history[len(h.history)-maxHistory:]
	}
	h.mu.Unlock()

	result := agent.Result{
		Output: map[string]any{
			"elements_detected": analysis.ElementsDetected,
			"ux_score":          analysis.UXScore,
			"issues_found":      analysis.Issues,
			"suggestions":       analysis.Suggestions,
		},
		Share: map[string]any{
			"kind":              "interface_analysis",
			"elements_detected": analysis.ElementsDetected,
			"ux_score":          analysis.UXScore,
			"issues_found":      len(analysis.Issues),
		},
	}
	if analysis.UXScore < alertScore {
		result.Alerts = append(result.Alerts, agent.Alert{
			Kind:     "critical_ui_issues",
			Severity: messaging.PriorityCritical,
			Detail: map[string]any{
				"ux_score":     analysis.UXScore,
				"issues_found": len(analysis.Issues),
			},
		})
	}
	return result, nil
}

// optimizeUI turns reported issues into concrete optimization steps.
func (h *Handler) optimizeUI(task agent.Task) (agent.Result, error) {
	issues := issuesFromPayload(task.Payload["issues"])

	optimizations := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		switch issue.Type {
		case "accessibility":
			optimizations = append(optimizations, map[string]any{
				"type":     "contrast_improvement",
				"action":   "raise text contrast to 4.5:1",
				"priority": "high",
			})
		case "performance":
			optimizations = append(optimizations, map[string]any{
				"type":     "resource_optimization",
				"action":   "compress images and stylesheets",
				"priority": "medium",
			})
		case "layout":
			optimizations = append(optimizations, map[string]any{
				"type":     "layout_adjustment",
				"action":   "align interactive elements to the grid",
				"priority": "low",
			})
		}
	}

	improvement := 0.0
	if len(optimizations) > 0 {
		improvement = 0.15
	}
	return agent.Result{Output: map[string]any{
		"optimizations":         optimizations,
		"estimated_improvement": improvement,
	}}, nil
}

// detectIssues scans the recent analyses for recurring issue types. It
// reports nothing until enough analyses have accumulated.
func (h *Handler) detectIssues() (agent.Result, error) {
	h.mu.Lock()
	recent := h.history
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	recent = slices.Clone(recent)
	h.mu.Unlock()

	patterns := make([]map[string]any, 0)
	if len(recent) >= minAnalyses {
		counts := make(map[string]int)
		for _, analysis := range recent {
			for _, issue := range analysis.Issues {
				counts[issue.Type]++
			}
		}

		types := make([]string, 0, len(counts))
		for issueType := range counts {
			types = append(types, issueType)
		}
		sort.Strings(types)

		for _, issueType := range types {
			if counts[issueType] >= minOccurrences {
				patterns = append(patterns, map[string]any{
					"type":           issueType,
					"frequency":      counts[issueType],
					"recommendation": fmt.Sprintf("recurring %s issues need a systemic fix", issueType),
				})
			}
		}
	}

	return agent.Result{Output: map[string]any{
		"patterns_detected": patterns,
		"analysis_count":    len(recent),
	}}, nil
}

func issuesFromPayload(v any) []Issue {
	switch items := v.(type) {
	case nil:
		return nil
	case []Issue:
		return slices.Clone(items)
	case []any:
		issues := make([]Issue, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			var issue Issue
			issue.Type, _ = m["type"].(string)
			issue.Severity, _ = m["severity"].(string)
			issue.Description, _ = m["description"].(string)
			if issue.Type != "" {
				issues = append(issues, issue)
			}
		}
		return issues
	default:
		return nil
	}
}
