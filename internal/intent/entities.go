package intent

import (
	"strings"

	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"github.com/dlclark/regexp2"
)

// Entity keys produced by Extract.
const (
	entCourse     = "course_id"
	entModule     = "module_id"
	entAssignment = "assignment_id"
	entUser       = "user_id"
	entTopic      = "topic_id"
	entEnrollment = "enrollment_id"
	entName       = "name"
	entEmail      = "email"
	entLogin      = "login_id"
	entPoints     = "points"
	entGrade      = "grade"
	entRole       = "role"
	entText       = "text"
	entHours      = "study_hours_per_week"
)

type pattern struct {
	key string
	re  *regexp2.Regexp
}

func mustCompile(expr string) *regexp2.Regexp {
	return regexp2.MustCompile(expr, regexp2.IgnoreCase)
}

// The name pattern stops before trailing clauses such as "in course 3" or
// "worth 20 points", which needs lookahead.
const nameStop = `(?=\s+(?:in|for|to|with|worth|due|as|on|under|saying)\b|\s*[,.?!]|\s*$)`

var patterns = []pattern{
	{entCourse, mustCompile(`\b(?:course|class)(?:\s+(?:id|number|no\.?))?\s*[:#]?\s*(\d+)\b`)},
	{entCourse, mustCompile(`\bcourse\b[^\n]{0,60}?\bID:?\s*(\d+)\b`)},
	{entModule, mustCompile(`\bmodule(?:\s+(?:id|number))?\s*[:#]?\s*(\d+)\b`)},
	{entAssignment, mustCompile(`\b(?:assignment|homework)(?:\s+(?:id|number))?\s*[:#]?\s*(\d+)\b`)},
	{entUser, mustCompile(`\b(?:user|student)(?:\s+(?:id|number))?\s*[:#]?\s*(\d+)\b`)},
	{entTopic, mustCompile(`\b(?:topic|discussion|thread)(?:\s+(?:id|number))?\s*[:#]?\s*(\d+)\b`)},
	{entEnrollment, mustCompile(`\benrollment(?:\s+(?:id|number))?\s*[:#]?\s*(\d+)\b`)},
	{entName, mustCompile(`["“]([^"”]{2,})["”]`)},
	{entName, mustCompile(`\b(?:called|named|titled)\s+(.+?)` + nameStop)},
	{entEmail, mustCompile(`\b([\w.+-]+@[\w-]+(?:\.[\w-]+)+)\b`)},
	{entLogin, mustCompile(`\b(?:login|username)(?:\s+(?:id|is))?\s*[:=]?\s*([\w.@+-]+)`)},
	{entPoints, mustCompile(`\b(\d+(?:\.\d+)?)\s*(?:points?|pts)\b`)},
	{entGrade, mustCompile(`\b(?:grade|score|mark)(?:\s+(?:it|them|this))?\s+(?:of|as|to|with|a)\s+([A-F][+-]?|\d+(?:\.\d+)?%?|pass|fail|complete|incomplete)(?![\w])`)},
	{entRole, mustCompile(`\bas\s+(?:an?\s+)?(student|teacher|ta|observer)\b`)},
	{entText, mustCompile(`\b(?:saying|says|message|text|body|answer)\s*[:\-]\s*(.+)$`)},
	{entText, mustCompile(`\bsaying\s+(.+)$`)},
	{entHours, mustCompile(`\b(\d+)\s*(?:hours?|hrs?)(?:\s+(?:a|per))?\s+week\b`)},
}

var idEntities = []string{entCourse, entModule, entAssignment, entUser, entTopic, entEnrollment}

// Extract finds every entity mentioned in text. The first match for a key wins.
func Extract(text string) map[string]string {
	found := make(map[string]string)
	for _, p := range patterns {
		if _, ok := found[p.key]; ok {
			continue
		}
		m, err := p.re.FindStringMatch(text)
		if err != nil || m == nil {
			continue
		}
		if g := m.GroupByNumber(1); g != nil {
			if v := strings.TrimSpace(g.String()); v != "" {
				found[p.key] = v
			}
		}
	}
	return found
}

// fromHistory returns the ids mentioned most recently in history.
func fromHistory(history []models.Message) map[string]string {
	found := make(map[string]string)
	for i := len(history) - 1; i >= 0 && len(found) < len(idEntities); i-- {
		ents := Extract(history[i].Content)
		for _, key := range idEntities {
			if _, ok := found[key]; ok {
				continue
			}
			if v, ok := ents[key]; ok {
				found[key] = v
			}
		}
	}
	return found
}

// argAliases lists which entity fills a parameter whose name differs.
var argAliases = map[string][]string{
	"title":           {entName},
	"search":          {entName, entEmail, entLogin},
	"assignment_name": {entName},
	"message":         {entText},
	"body":            {entText},
	"comment":         {},
}

// buildArgs maps entities onto the parameters of def. Ids absent from the
// input are reused from history; explicit counts go to inputHits.
func buildArgs(def *tools.Definition, input, history map[string]string) (args tools.Args, inputHits int) {
	args = tools.Args{}
	for param := range def.Params.Properties {
		keys, aliased := argAliases[param]
		if !aliased {
			keys = []string{param}
		}
		for _, key := range keys {
			if v, ok := input[key]; ok {
				if param == "role" {
					v = enrollmentTypes[strings.ToLower(v)]
				}
				args[param] = v
				if isRequired(def, param) {
					inputHits++
				}
				break
			}
		}
		if _, ok := args[param]; !ok {
			if v, ok := history[param]; ok {
				args[param] = v
			}
		}
	}
	return args, inputHits
}

var enrollmentTypes = map[string]string{
	"student":  "StudentEnrollment",
	"teacher":  "TeacherEnrollment",
	"ta":       "TaEnrollment",
	"observer": "ObserverEnrollment",
}

func isRequired(def *tools.Definition, param string) bool {
	for _, r := range def.Params.Required {
		if r == param {
			return true
		}
	}
	return false
}
