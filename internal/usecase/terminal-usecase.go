package usecase

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/iamvkosarev/ai-chat-proxy/internal/conversation"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	"github.com/iamvkosarev/ai-chat-proxy/pkg/local"
	"github.com/sourcegraph/conc"
)

var (
	MessageWelcome = local.NewSet(
		"Chatting with %s. Type /help for commands.",
		local.NewTrans(local.Rus, "Модель: %s. Введите /help для списка команд."),
	)
	MessageHelp = local.NewSet(
		"/retry  regenerate the last answer\n/copy [n]  copy the last (or n-th from last) answer\n/model <value>  switch model\n/models list models\n/web    toggle web search\n/quit   exit",
		local.NewTrans(
			local.Rus,
			"/retry  повторить последний ответ\n/copy [n]  скопировать последний (или n-й с конца) ответ\n/model <value>  сменить модель\n/models список моделей\n/web    веб-поиск вкл/выкл\n/quit   выход",
		),
	)
	MessageThinking       = local.NewSet("Thinking...", local.NewTrans(local.Rus, "Думаю..."))
	MessageBusy           = local.NewSet("Still waiting for the previous answer.", local.NewTrans(local.Rus, "Предыдущий ответ ещё не получен."))
	MessageNothingToRetry = local.NewSet("Nothing to regenerate yet.", local.NewTrans(local.Rus, "Пока нечего повторять."))
	MessageNothingToCopy  = local.NewSet("No answer to copy yet.", local.NewTrans(local.Rus, "Пока нечего копировать."))
	MessageBadCopyIndex   = local.NewSet("%q is not an answer number.", local.NewTrans(local.Rus, "%q не номер ответа."))
	MessageCopied         = local.NewSet("Copied to clipboard.", local.NewTrans(local.Rus, "Скопировано в буфер обмена."))
	MessageModelSelected  = local.NewSet("Model: %s", local.NewTrans(local.Rus, "Модель: %s"))
	MessageUnknownModel   = local.NewSet("Unknown model %q, see /models.", local.NewTrans(local.Rus, "Неизвестная модель %q, см. /models."))
	MessageWebSearch      = local.NewSet("Web search: %v", local.NewTrans(local.Rus, "Веб-поиск: %v"))
	MessageCommandUnknown = local.NewSet("I don't know that command", local.NewTrans(local.Rus, "Неизвестная команда"))
)

const (
	CommandRetry  = "retry"
	CommandCopy   = "copy"
	CommandModel  = "model"
	CommandModels = "models"
	CommandWeb    = "web"
	CommandHelp   = "help"
	CommandQuit   = "quit"
)

type Clipboard interface {
	WriteText(text string) error
}

// OSC52Clipboard asks the terminal emulator to set the system clipboard.
type OSC52Clipboard struct {
	Out io.Writer
}

func (c OSC52Clipboard) WriteText(text string) error {
	_, err := fmt.Fprintf(c.Out, "\x1b]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
	return err
}

type TerminalUsecaseDeps struct {
	Conversation *ConversationUsecase
	Clipboard    Clipboard
}

// TerminalUsecase is a line-oriented chat front-end over ConversationUsecase.
type TerminalUsecase struct {
	TerminalUsecaseDeps
	in          io.Reader
	out         io.Writer
	interactive bool
	printer     local.Printer
	models      []model.ModelOption
}

func NewTerminalUsecase(
	deps TerminalUsecaseDeps,
	in io.Reader,
	out io.Writer,
	interactive bool,
	language local.Language,
	models []model.ModelOption,
) *TerminalUsecase {
	return &TerminalUsecase{
		TerminalUsecaseDeps: deps,
		in:                  in,
		out:                 out,
		interactive:         interactive,
		printer:             local.NewPrinter(language),
		models:              models,
	}
}

func (t *TerminalUsecase) Run(ctx context.Context) error {
	t.println(t.printer.Format(MessageWelcome, t.Conversation.Snapshot().SelectedModel))
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		t.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if command, arg, ok := parseCommand(line); ok {
			if command == CommandQuit {
				return nil
			}
			t.handleCommand(ctx, command, arg)
			continue
		}
		t.printMessage(
			t.await(
				func() (*model.Message, error) {
					return t.Conversation.Submit(ctx, line)
				},
			),
		)
	}
}

func parseCommand(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	command, arg, _ := strings.Cut(trimmed[1:], " ")
	return strings.ToLower(command), strings.TrimSpace(arg), true
}

func (t *TerminalUsecase) handleCommand(ctx context.Context, command, arg string) {
	switch command {
	case CommandRetry:
		if len(t.Conversation.Snapshot().Messages) == 0 {
			t.println(t.printer.Text(MessageNothingToRetry))
			return
		}
		t.printMessage(
			t.await(
				func() (*model.Message, error) {
					return t.Conversation.Regenerate(ctx)
				},
			),
		)
	case CommandCopy:
		t.copyAnswer(arg)
	case CommandModel:
		if !t.knownModel(arg) {
			t.println(t.printer.Format(MessageUnknownModel, arg))
			return
		}
		t.Conversation.SelectModel(arg)
		t.println(t.printer.Format(MessageModelSelected, arg))
	case CommandModels:
		selected := t.Conversation.Snapshot().SelectedModel
		for _, option := range t.models {
			marker := " "
			if option.Value == selected {
				marker = "*"
			}
			t.println(fmt.Sprintf("%s %s (%s)", marker, option.Value, option.Name))
		}
	case CommandWeb:
		t.println(t.printer.Format(MessageWebSearch, t.Conversation.ToggleWebSearch()))
	case CommandHelp:
		t.println(t.printer.Text(MessageHelp))
	default:
		t.println(t.printer.Text(MessageCommandUnknown))
	}
}

func (t *TerminalUsecase) copyAnswer(arg string) {
	back := 1
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			t.println(t.printer.Format(MessageBadCopyIndex, arg))
			return
		}
		back = n
	}
	id, ok := t.Conversation.AnswerID(back)
	if !ok {
		t.println(t.printer.Text(MessageNothingToCopy))
		return
	}
	text, err := t.Conversation.CopyText(id)
	if err != nil {
		log.Printf("failed to read message %s: %v", id, err)
		return
	}
	if err = t.Clipboard.WriteText(text); err != nil {
		log.Printf("failed to write clipboard: %v", err)
		return
	}
	t.println(t.printer.Text(MessageCopied))
}

// await runs call while showing the thinking indicator and returns the
// assistant message it produced, if any.
func (t *TerminalUsecase) await(call func() (*model.Message, error)) *model.Message {
	var message *model.Message
	var err error
	done := make(chan struct{})

	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			defer close(done)
			message, err = call()
		},
	)
	wg.Go(
		func() {
			t.showThinking(done)
		},
	)
	wg.Wait()

	if errors.Is(err, conversation.ErrRequestInFlight) {
		t.println(t.printer.Text(MessageBusy))
		return nil
	}
	if err != nil {
		log.Printf("failed to complete turn: %v", err)
		return nil
	}
	return message
}

func (t *TerminalUsecase) printMessage(message *model.Message) {
	if message != nil {
		t.println(message.Text())
	}
}

func (t *TerminalUsecase) showThinking(done <-chan struct{}) {
	if !t.interactive {
		<-done
		return
	}
	select {
	case <-done:
		return
	default:
	}
	_, _ = fmt.Fprint(t.out, t.printer.Text(MessageThinking))
	<-done
	_, _ = fmt.Fprint(t.out, "\r\x1b[K")
}

func (t *TerminalUsecase) knownModel(value string) bool {
	for _, option := range t.models {
		if option.Value == value {
			return true
		}
	}
	return false
}

func (t *TerminalUsecase) prompt() {
	if t.interactive {
		_, _ = fmt.Fprint(t.out, "> ")
	}
}

func (t *TerminalUsecase) println(text string) {
	_, _ = fmt.Fprintln(t.out, text)
}
