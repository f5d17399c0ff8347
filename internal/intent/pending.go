package intent

import (
	"strings"

	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
)

// Resume continues a tool that asked for more information on the previous
// turn. Entities in input override the collected arguments. When the input
// names no entity and exactly one string argument is missing, the whole input
// is taken as its value.
func Resume(def *tools.Definition, collected tools.Args, input string, history []models.Message) Outcome {
	args := collected.Clone()
	fresh, _ := buildArgs(def, Extract(input), nil)
	for k, v := range fresh {
		args[k] = v
	}
	past, _ := buildArgs(def, nil, fromHistory(history))
	for k, v := range past {
		if !args.Has(k) {
			args[k] = v
		}
	}

	missing := tools.MissingArgs(def, args)
	if len(fresh) == 0 && len(missing) == 1 && def.Params.Properties[missing[0]].Type == "string" {
		if v := strings.TrimSpace(input); v != "" {
			args[missing[0]] = v
		}
	}
	return resolve(def, args, 1, "pending")
}
