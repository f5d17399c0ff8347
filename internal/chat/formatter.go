package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/llm"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"go.uber.org/zap"
)

// BackendTemplate marks replies composed without a model.
const BackendTemplate = "template"

const (
	apology      = "I'm sorry, I couldn't generate a response right now. Please try again in a moment."
	abortNotice  = "I stopped after several steps without finishing. Here is what I found so far; please rephrase or narrow the request if you need more."
	maxListItems = 10
)

const summarySystemPrompt = `You are a helpful assistant for a Canvas learning management system.
Summarize the tool results below for the user in a friendly, concise way.
Use only the data provided. Never invent courses, ids, grades or dates.`

const chatSystemPrompt = `You are a helpful assistant for a Canvas learning management system.
Answer the user's question conversationally and concisely. If the request needs data
from Canvas that you do not have, say what the user could ask for instead.`

// Reply is what the user sees for one turn.
type Reply struct {
	Content     string         `json:"content"`
	Status      Status         `json:"status"`
	ToolUsed    bool           `json:"tool_used"`
	Tools       []string       `json:"tools,omitempty"`
	ToolResults []tools.Result `json:"tool_results,omitempty"`
	Backend     string         `json:"inference_system"`
	Model       string         `json:"model_name"`
	Usage       llm.Usage      `json:"usage"`
	PendingTool string         `json:"pending_tool,omitempty"`
	PendingArgs tools.Args     `json:"pending_args,omitempty"`
	Iterations  int            `json:"iterations"`
	States      []State        `json:"states,omitempty"`
}

type Formatter struct {
	backend llm.Backend // optional
	catalog *tools.Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewFormatter(backend llm.Backend, catalog *tools.Catalog, timeout time.Duration, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Formatter{backend: backend, catalog: catalog, timeout: timeout, logger: logger}
}

// Format composes the reply for a finished run. It never fails: every
// backend problem degrades to a deterministic text.
func (f *Formatter) Format(ctx context.Context, turn Turn, trace *Trace, opts ...llm.Option) *Reply {
	reply := &Reply{
		Status:      trace.Status,
		ToolResults: trace.Results,
		Iterations:  trace.Iterations,
		States:      trace.States,
		Backend:     BackendTemplate,
	}
	for _, r := range trace.Results {
		reply.Tools = append(reply.Tools, r.Call.Name)
	}
	reply.ToolUsed = len(reply.Tools) > 0

	switch trace.Status {
	case StatusPermissionDenied:
		reply.Content = apperr.UserMessage(trace.Err)

	case StatusNeedsClarification:
		c := trace.Clarify
		reply.Content = f.clarify(c)
		reply.PendingTool = c.Tool
		reply.PendingArgs = c.Args

	case StatusAborted:
		reply.Content = abortNotice
		if partial := summarize(trace.Results); partial != "" {
			reply.Content = partial + "\n\n" + abortNotice
		}

	case StatusError:
		reply.Content = apology
		if trace.Err != nil {
			reply.Content = apperr.UserMessage(trace.Err)
		}
		if len(trace.Results) > 0 {
			reply.Content = summarize(trace.Results)
		}

	default:
		if len(trace.Results) > 0 {
			f.summarizeResults(ctx, turn, trace, reply, opts)
		} else {
			f.answer(ctx, turn, trace, reply, opts)
		}
	}
	return reply
}

func (f *Formatter) summarizeResults(ctx context.Context, turn Turn, trace *Trace, reply *Reply, opts []llm.Option) {
	if f.backend != nil {
		payload, err := json.MarshalIndent(trace.Results, "", "  ")
		if err == nil {
			messages := []llm.Message{
				{Role: llm.RoleSystem, Content: summarySystemPrompt},
				{Role: llm.RoleUser, Content: fmt.Sprintf("User request: %s\n\nTool results:\n%s", turn.Input, truncate(string(payload), 6000))},
			}
			// Timeouts get one more chance, anything else falls back at once.
			for attempt := 1; attempt <= 2; attempt++ {
				completion, genErr := f.generate(ctx, messages, opts)
				if genErr == nil && strings.TrimSpace(completion.Text) != "" {
					f.use(reply, completion)
					return
				}
				if genErr == nil || !apperr.IsTimeout(genErr) || ctx.Err() != nil {
					f.logger.Warn("summary generation failed, using template", zap.Error(genErr))
					break
				}
				f.logger.Info("summary generation timed out, retrying", zap.Int("attempt", attempt))
			}
		}
	}
	reply.Content = summarize(trace.Results)
}

func (f *Formatter) answer(ctx context.Context, turn Turn, trace *Trace, reply *Reply, opts []llm.Option) {
	if draft := strings.TrimSpace(trace.Draft); draft != "" {
		reply.Content = draft
		if f.backend != nil {
			reply.Backend, reply.Model = f.backend.Name(), f.backend.Model()
		}
		return
	}
	if f.backend == nil {
		reply.Content = apology
		return
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: chatSystemPrompt}}
	for _, m := range turn.History {
		role := llm.RoleUser
		if m.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Input})

	completion, err := f.generate(ctx, messages, opts)
	if err != nil || strings.TrimSpace(completion.Text) == "" {
		f.logger.Warn("direct reply failed", zap.Error(err))
		reply.Content = apology
		return
	}
	f.use(reply, completion)
}

func (f *Formatter) generate(ctx context.Context, messages []llm.Message, opts []llm.Option) (*llm.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.backend.Generate(ctx, messages, opts...)
}

func (f *Formatter) use(reply *Reply, c *llm.Completion) {
	reply.Content = strings.TrimSpace(c.Text)
	reply.Backend = c.Backend
	reply.Model = c.Model
	reply.Usage = c.Usage
}

// clarify asks exactly one question naming every missing argument.
func (f *Formatter) clarify(c *Clarification) string {
	action := tools.Describe(c.Tool)
	if def, ok := f.catalog.Lookup(c.Tool); ok && def.Description != "" {
		action = lowerFirst(def.Description)
	}
	labels := make([]string, len(c.Missing))
	for i, m := range c.Missing {
		labels[i] = label(m)
	}
	if len(labels) == 1 {
		return fmt.Sprintf("To %s, I need the %s. What is the %s?", action, labels[0], labels[0])
	}
	return fmt.Sprintf("To %s, I need a few details. What are the %s?", action, joinAnd(labels))
}

// label turns a parameter name into words: course_id -> "course ID".
func label(param string) string {
	words := strings.Split(param, "_")
	for i, w := range words {
		if w == "id" {
			words[i] = "ID"
		}
	}
	return strings.Join(words, " ")
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// summarize renders results without a model, one paragraph per result.
func summarize(results []tools.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, summarizeOne(r))
	}
	return strings.Join(parts, "\n\n")
}

var pastTense = map[string]string{
	"create":   "Created",
	"update":   "Updated",
	"publish":  "Published",
	"delete":   "Deleted",
	"enroll":   "Enrolled",
	"unenroll": "Unenrolled",
	"grade":    "Graded",
	"submit":   "Submitted",
	"add":      "Added",
	"post":     "Posted",
	"upload":   "Uploaded",
}

func summarizeOne(r tools.Result) string {
	if !r.OK() {
		return fmt.Sprintf("I couldn't %s: %s", tools.Describe(r.Call.Name), apperr.UserMessage(r.Err))
	}

	switch v := r.Data.(type) {
	case tools.CourseCreated:
		s := fmt.Sprintf("Created course: %s (ID: %d)", v.Course.Name, v.Course.ID)
		if v.TeacherEnrolled {
			s += "\nYou have been enrolled as the teacher."
		}
		return s
	case tools.LearningPlan:
		return summarizePlan(v)
	case tools.Upload:
		return v.Message
	case *canvas.CourseProgress:
		return fmt.Sprintf("Progress in course %d: %d of %d assignments submitted, %d graded, %d late. Completion %.0f%%, average score %.1f.",
			v.CourseID, v.SubmittedAssignments, v.TotalAssignments, v.GradedAssignments, v.LateSubmissions, v.CompletionRate, v.AverageScore)
	case []canvas.Course:
		if len(v) == 0 {
			return "No courses found."
		}
		lines := make([]string, 0, len(v))
		for _, c := range v {
			if c.CourseCode != "" {
				lines = append(lines, fmt.Sprintf("%s (%s)", c.Name, c.CourseCode))
			} else {
				lines = append(lines, c.Name)
			}
		}
		return bulleted(fmt.Sprintf("Found %d courses:", len(v)), lines)
	}

	verb, noun := splitName(r.Call.Name)
	generic := toGeneric(r.Data)

	if items, ok := generic.([]any); ok {
		if len(items) == 0 {
			return fmt.Sprintf("No %s found.", noun)
		}
		lines := make([]string, 0, len(items))
		for _, item := range items {
			lines = append(lines, itemLabel(item))
		}
		return bulleted(fmt.Sprintf("Found %d %s:", len(items), noun), lines)
	}

	subject := itemLabel(generic)
	if r.Mutating {
		past, ok := pastTense[verb]
		if !ok {
			past = "Done"
		}
		return fmt.Sprintf("%s %s: %s", past, singular(noun), subject)
	}
	return fmt.Sprintf("%s: %s", upperFirst(singular(noun)), subject)
}

func summarizePlan(p tools.LearningPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Learning plan for course %d (%d hours per week):", p.CourseID, p.StudyHoursPerWeek)
	for _, w := range p.Weeks {
		fmt.Fprintf(&b, "\n• Week %d: %s, %d hours, due %s", w.Week, w.Module, w.HoursAllocated, w.Deadline)
	}
	if len(p.Tips) > 0 {
		b.WriteString("\nTips:")
		for _, tip := range p.Tips {
			fmt.Fprintf(&b, "\n• %s", tip)
		}
	}
	return b.String()
}

func bulleted(header string, lines []string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, line := range lines {
		if i == maxListItems {
			fmt.Fprintf(&b, "\n…and %d more", len(lines)-maxListItems)
			break
		}
		b.WriteString("\n• ")
		b.WriteString(line)
	}
	return b.String()
}

// splitName separates the leading verb: list_course_users -> ("list", "course users").
func splitName(name string) (string, string) {
	verb, rest, ok := strings.Cut(name, "_")
	if !ok {
		return "", name
	}
	return verb, strings.ReplaceAll(rest, "_", " ")
}

func singular(noun string) string {
	switch {
	case strings.HasSuffix(noun, "ies"):
		return strings.TrimSuffix(noun, "ies") + "y"
	case strings.HasSuffix(noun, "sses"):
		return strings.TrimSuffix(noun, "es")
	case strings.HasSuffix(noun, "s") && !strings.HasSuffix(noun, "ss"):
		return strings.TrimSuffix(noun, "s")
	}
	return noun
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// toGeneric round-trips v through JSON so any tool payload can be walked as
// maps and slices.
func toGeneric(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// itemLabel picks the most human field of an object and appends its id.
func itemLabel(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		if v == nil {
			return "done"
		}
		return fmt.Sprint(v)
	}
	var name string
	for _, key := range []string{"name", "title", "display_name", "assignment_name", "course_name", "url"} {
		if s, ok := obj[key].(string); ok && s != "" {
			name = s
			break
		}
	}
	if name == "" {
		if g, ok := obj["grade"].(string); ok && g != "" {
			name = "grade " + g
		} else if st, ok := obj["workflow_state"].(string); ok && st != "" {
			name = st
		}
	}
	id := obj["id"]
	if id == nil {
		id = obj["assignment_id"]
	}
	switch {
	case name != "" && id != nil:
		return fmt.Sprintf("%s (ID: %v)", name, id)
	case name != "":
		return name
	case id != nil:
		return fmt.Sprintf("ID %v", id)
	}
	return "done"
}
