package relay

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/tools"
)

// Control command names.
const (
	CmdKBStore     = "kb.store"
	CmdKBList      = "kb.list"
	CmdKBDelete    = "kb.delete"
	CmdEmails      = "google.emails"
	CmdFiles       = "google.files"
	CmdFileContent = "google.file.content"
	CmdCalendar    = "google.calendar"
	CmdContacts    = "google.contacts"
)

// maxClientFileContent caps file content returned to the client, in runes.
const maxClientFileContent = 10000

var errKnowledgeDisabled = errors.New("knowledge base is disabled")

type commandFunc func(ctx context.Context, args tools.Args) ([]byte, error)

func (pl *Pipeline) commands() map[string]commandFunc {
	return map[string]commandFunc{
		CmdKBStore:     pl.kbStore,
		CmdKBList:      pl.kbList,
		CmdKBDelete:    pl.kbDelete,
		CmdEmails:      pl.googleEmails,
		CmdFiles:       pl.googleFiles,
		CmdFileContent: pl.googleFileContent,
		CmdCalendar:    pl.googleCalendar,
		CmdContacts:    pl.googleContacts,
	}
}

// runCommand answers a control command with exactly one client message.
func (pl *Pipeline) runCommand(ctx context.Context, cmd ControlCommand) []byte {
	errType := commandErrorType(cmd.Name)

	fn, ok := pl.handlers[cmd.Name]
	if !ok {
		return reply(errType, map[string]any{"error": "unknown command: " + cmd.Name})
	}

	out, err := guarded(func() ([]byte, error) { return fn(ctx, tools.Args(cmd.Args)) })
	if err != nil {
		pl.log.Warn().Err(err).Str("command", cmd.Name).Msg("control command failed")
		return reply(errType, map[string]any{"error": err.Error()})
	}
	pl.log.Debug().Str("command", cmd.Name).Msg("control command handled")
	return out
}

func commandErrorType(name string) string {
	if strings.HasPrefix(name, "kb.") {
		return "kb.error"
	}
	return "google.error"
}

func (pl *Pipeline) kbStore(ctx context.Context, args tools.Args) ([]byte, error) {
	if pl.p.Knowledge == nil {
		return nil, errKnowledgeDisabled
	}
	name := args.String("name")
	if name == "" {
		name = "Untitled"
	}
	docType := args.String("doc_type")
	if docType == "" {
		docType = "text"
	}
	content, _ := args["content"].(string)

	chunks, err := pl.p.Knowledge.Store(ctx, name, content, docType)
	if err != nil {
		return nil, err
	}
	pl.log.Info().Str("document", name).Int("chunks", chunks).Msg("document stored")
	return reply("kb.stored", map[string]any{"name": name, "chunks": chunks}), nil
}

func (pl *Pipeline) kbList(ctx context.Context, _ tools.Args) ([]byte, error) {
	if pl.p.Knowledge == nil {
		return nil, errKnowledgeDisabled
	}
	docs, err := pl.p.Knowledge.List(ctx)
	if err != nil {
		return nil, err
	}
	return reply("kb.documents", map[string]any{"documents": nonNil(docs)}), nil
}

func (pl *Pipeline) kbDelete(ctx context.Context, args tools.Args) ([]byte, error) {
	if pl.p.Knowledge == nil {
		return nil, errKnowledgeDisabled
	}
	name := args.String("name")
	chunks, err := pl.p.Knowledge.Delete(ctx, name)
	if err != nil {
		return nil, err
	}
	return reply("kb.deleted", map[string]any{"name": name, "chunks": chunks}), nil
}

func (pl *Pipeline) googleEmails(ctx context.Context, args tools.Args) ([]byte, error) {
	max := args.Int("max_results", 10)
	var emails []domain.Email
	var err error
	if q := args.String("query"); q != "" {
		emails, err = pl.p.Tools.SearchEmails(ctx, q, max)
	} else {
		emails, err = pl.p.Tools.RecentEmails(ctx, max)
	}
	if err != nil {
		return nil, err
	}
	return reply("google.emails.result", map[string]any{"emails": nonNil(emails)}), nil
}

func (pl *Pipeline) googleFiles(ctx context.Context, args tools.Args) ([]byte, error) {
	max := args.Int("max_results", 20)
	var files []domain.File
	var err error
	if q := args.String("query"); q != "" {
		files, err = pl.p.Tools.SearchFiles(ctx, q, max)
	} else {
		files, err = pl.p.Tools.ListFiles(ctx, max)
	}
	if err != nil {
		return nil, err
	}
	return reply("google.files.result", map[string]any{"files": nonNil(files)}), nil
}

func (pl *Pipeline) googleFileContent(ctx context.Context, args tools.Args) ([]byte, error) {
	id := args.String("file_id")
	content, err := pl.p.Tools.FileContent(ctx, id)
	if err != nil {
		return nil, err
	}
	return reply("google.file.content.result", map[string]any{
		"file_id": id,
		"content": tools.Truncate(content, maxClientFileContent),
	}), nil
}

func (pl *Pipeline) googleCalendar(ctx context.Context, args tools.Args) ([]byte, error) {
	events, err := pl.p.Tools.UpcomingEvents(ctx, args.Int("max_results", 10))
	if err != nil {
		return nil, err
	}
	return reply("google.calendar.result", map[string]any{"events": nonNil(events)}), nil
}

func (pl *Pipeline) googleContacts(ctx context.Context, args tools.Args) ([]byte, error) {
	contacts, err := pl.p.Tools.Contacts(ctx, args.String("query"), args.Int("max_results", 10))
	if err != nil {
		return nil, err
	}
	return reply("google.contacts.result", map[string]any{"contacts": nonNil(contacts)}), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
