package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2/terminal"

	"lawchat/internal/conversation"
	"lawchat/internal/model"
)

type slashKind int

const (
	slashNone slashKind = iota
	slashHelp
	slashReset
	slashHistory
	slashDownload
	slashLabel
	slashComment
	slashSubmit
	slashModel
	slashQuit
)

// slashCommand is a parsed chat-loop command. Index refers to the position
// shown next to each message.
type slashCommand struct {
	Kind    slashKind
	Index   int
	Correct bool
	Text    string
}

var errUnknownCommand = errors.New("unknown command, type /help")

const chatHelp = `/reset                 start a new conversation
/history               fetch the server-side history
/download              save the history as chat-<sid>.json
/label <n> yes|no      mark answer n correct or incorrect
/comment <n> [text]    attach a comment to answer n
/submit <n>            send the feedback for answer n
/model                 choose the answer model
/quit                  leave`

// parseSlash returns slashNone for plain questions.
func parseSlash(line string) (slashCommand, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return slashCommand{Kind: slashNone, Text: line}, nil
	}

	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/help", "/?":
		return slashCommand{Kind: slashHelp}, nil
	case "/reset", "/new":
		return slashCommand{Kind: slashReset}, nil
	case "/history":
		return slashCommand{Kind: slashHistory}, nil
	case "/download":
		return slashCommand{Kind: slashDownload}, nil
	case "/model":
		return slashCommand{Kind: slashModel}, nil
	case "/quit", "/exit", "/q":
		return slashCommand{Kind: slashQuit}, nil
	case "/label":
		if len(args) != 2 {
			return slashCommand{}, fmt.Errorf("usage: /label <n> yes|no")
		}
		index, err := parseIndex(args[0])
		if err != nil {
			return slashCommand{}, err
		}
		correct, err := parseVerdict(args[1])
		if err != nil {
			return slashCommand{}, err
		}
		return slashCommand{Kind: slashLabel, Index: index, Correct: correct}, nil
	case "/comment":
		if len(args) < 1 {
			return slashCommand{}, fmt.Errorf("usage: /comment <n> [text]")
		}
		index, err := parseIndex(args[0])
		if err != nil {
			return slashCommand{}, err
		}
		return slashCommand{Kind: slashComment, Index: index, Text: strings.Join(args[1:], " ")}, nil
	case "/submit":
		if len(args) != 1 {
			return slashCommand{}, fmt.Errorf("usage: /submit <n>")
		}
		index, err := parseIndex(args[0])
		if err != nil {
			return slashCommand{}, err
		}
		return slashCommand{Kind: slashSubmit, Index: index}, nil
	}
	return slashCommand{}, errUnknownCommand
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid message number %q", s)
	}
	return n, nil
}

func parseVerdict(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "correct", "true", "👍":
		return true, nil
	case "no", "n", "incorrect", "false", "👎":
		return false, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", s)
}

// chatSession runs the read-eval loop over one controller.
type chatSession struct {
	env       *Env
	ctrl      *conversation.Controller
	composing bool
}

// observe prints the composing indicator once per pending question.
func (s *chatSession) observe(snap conversation.Snapshot) {
	if snap.Composing && !s.composing {
		fmt.Fprintln(s.env.Out, mutedStyle.Render("Thinking..."))
	}
	s.composing = snap.Composing
}

func runInteractive(ctx context.Context, env *Env) error {
	s := &chatSession{env: env}
	s.ctrl = env.Controller(s.observe)

	fmt.Fprintln(env.Out, RenderTitle(env.Config.App.Title))
	if sid := s.ctrl.SID(ctx); sid != "" {
		fmt.Fprintln(env.Out, mutedStyle.Render("Continuing session "+sid))
	}
	fmt.Fprintln(env.Out, mutedStyle.Render("Type /help for commands."))

	for {
		line, err := PromptQuestion(s.ctrl.Draft())
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			return err
		}

		cmd, err := parseSlash(line)
		if err != nil {
			fmt.Fprintln(env.Out, RenderError(err))
			continue
		}
		if cmd.Kind == slashQuit {
			return nil
		}
		if err := s.dispatch(ctx, cmd); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				continue
			}
			fmt.Fprintln(env.Out, RenderError(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *chatSession) dispatch(ctx context.Context, cmd slashCommand) error {
	out := s.env.Out

	switch cmd.Kind {
	case slashNone:
		return s.ask(ctx, cmd.Text)
	case slashHelp:
		fmt.Fprintln(out, mutedStyle.Render(chatHelp))
	case slashReset:
		s.ctrl.Reset(ctx)
		fmt.Fprint(out, s.last())
	case slashHistory:
		history, err := s.ctrl.History(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(out, RenderTranscript(history))
	case slashDownload:
		name, err := s.download(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, mutedStyle.Render("Saved "+name))
	case slashLabel:
		if err := s.ctrl.SetLabel(ctx, cmd.Index, cmd.Correct); err != nil {
			return err
		}
		s.printMessage(cmd.Index)
	case slashComment:
		text := cmd.Text
		if text == "" {
			current := ""
			if msg, ok := s.ctrl.Log().At(cmd.Index); ok && msg.Feedback != nil {
				current = msg.Feedback.Comment
			}
			var err error
			if text, err = PromptComment(current); err != nil {
				return err
			}
		}
		if err := s.ctrl.SetComment(ctx, cmd.Index, text); err != nil {
			return err
		}
		s.printMessage(cmd.Index)
	case slashSubmit:
		if err := s.ctrl.SubmitFeedback(ctx, cmd.Index); err != nil {
			return err
		}
		s.printMessage(cmd.Index)
	case slashModel:
		current, err := s.env.Settings.Current(ctx)
		if err != nil {
			return err
		}
		selected, err := PromptModel(s.env.Settings.Models(), current)
		if err != nil {
			return err
		}
		return s.env.Settings.Select(ctx, selected)
	}
	return nil
}

func (s *chatSession) ask(ctx context.Context, q string) error {
	if strings.TrimSpace(q) == "" {
		return nil
	}
	s.ctrl.SetDraft(q)

	reply, err := s.ctrl.Send(ctx, q)
	if err != nil {
		return err
	}
	fmt.Fprint(s.env.Out, RenderMessage(reply.Index, reply.Message))
	return nil
}

func (s *chatSession) download(ctx context.Context) (string, error) {
	history, err := s.ctrl.History(ctx)
	if err != nil {
		return "", err
	}
	sid := s.ctrl.SID(ctx)
	name := conversation.ExportFileName(sid)

	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("create %s failed: %w", name, err)
	}
	defer f.Close()
	if err := conversation.WriteTranscript(f, model.Transcript{SID: sid, History: history}); err != nil {
		return "", err
	}
	return name, nil
}

func (s *chatSession) printMessage(index int) {
	if msg, ok := s.ctrl.Log().At(index); ok {
		fmt.Fprint(s.env.Out, RenderMessage(index, msg))
	}
}

func (s *chatSession) last() string {
	n := s.ctrl.Log().Len()
	if n == 0 {
		return ""
	}
	return RenderMessage(n-1, mustAt(s.ctrl.Log(), n-1))
}

func mustAt(log *conversation.Log, index int) model.Message {
	msg, _ := log.At(index)
	return msg
}
