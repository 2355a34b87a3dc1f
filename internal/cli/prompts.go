package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

func PromptQuestion(def string) (string, error) {
	var q string
	prompt := &survey.Input{
		Message: ">",
		Default: def,
		Help:    "Ask a question, or type /help for commands",
	}
	if err := survey.AskOne(prompt, &q); err != nil {
		return "", err
	}
	return q, nil
}

func PromptCredentials() (string, string, error) {
	answers := struct {
		Username string
		Password string
	}{}
	qs := []*survey.Question{
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.Required,
		},
		{
			Name:     "password",
			Prompt:   &survey.Password{Message: "Password:"},
			Validate: survey.Required,
		},
	}
	if err := survey.Ask(qs, &answers); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(answers.Username), answers.Password, nil
}

func promptPassword() (string, error) {
	var password string
	if err := survey.AskOne(&survey.Password{Message: "Password:"}, &password, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return password, nil
}

func PromptText(message, def string) (string, error) {
	var v string
	if err := survey.AskOne(&survey.Input{Message: message, Default: def}, &v); err != nil {
		return "", err
	}
	return v, nil
}

func PromptComment(def string) (string, error) {
	return PromptText("Comment:", def)
}

func Confirm(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func PromptModel(models []string, current string) (string, error) {
	var selected string
	prompt := &survey.Select{
		Message: "Answer model:",
		Options: models,
		Default: current,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

func PromptCompareModels(models, current []string) ([]string, error) {
	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Models to compare:",
		Options: models,
		Default: current,
	}
	err := survey.AskOne(prompt, &selected, survey.WithValidator(func(val interface{}) error {
		picked, ok := val.([]survey.OptionAnswer)
		if !ok {
			return fmt.Errorf("invalid selection type")
		}
		if len(picked) == 0 {
			return fmt.Errorf("pick at least one model")
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return selected, nil
}

// PromptDate accepts YYYY-MM-DD or empty.
func PromptDate(message, def string) (string, error) {
	var v string
	prompt := &survey.Input{
		Message: message,
		Default: def,
		Help:    "Format: YYYY-MM-DD. Leave empty for no bound.",
	}
	err := survey.AskOne(prompt, &v, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return nil
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// browseAction is one choice of the session browser menu.
type browseAction string

const (
	actionNext   browseAction = "Next page"
	actionPrev   browseAction = "Previous page"
	actionOpen   browseAction = "Open session"
	actionDelete browseAction = "Delete session"
	actionFilter browseAction = "Change filter"
	actionExport browseAction = "Export all (NDJSON)"
	actionQuit   browseAction = "Quit"
)

func browseActions(hasPrev, hasNext, hasRows bool) []string {
	var out []string
	if hasNext {
		out = append(out, string(actionNext))
	}
	if hasPrev {
		out = append(out, string(actionPrev))
	}
	if hasRows {
		out = append(out, string(actionOpen), string(actionDelete))
	}
	return append(out, string(actionFilter), string(actionExport), string(actionQuit))
}

func PromptBrowseAction(options []string) (browseAction, error) {
	var selected string
	if err := survey.AskOne(&survey.Select{Message: "Sessions:", Options: options}, &selected); err != nil {
		return "", err
	}
	return browseAction(selected), nil
}

func PromptSession(sids []string) (string, error) {
	var selected string
	if err := survey.AskOne(&survey.Select{Message: "Session:", Options: sids}, &selected); err != nil {
		return "", err
	}
	return selected, nil
}
