package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/voicerelay/internal/domain"
)

type fileProvider interface {
	ListFiles(ctx context.Context, max int) ([]domain.File, error)
	SearchFiles(ctx context.Context, query string, max int) ([]domain.File, error)
	FileContent(ctx context.Context, fileID string) (string, error)
}

const (
	maxFileContent    = 5000
	truncationNotice  = "\n\n[Content truncated - file too long]"
	fileNotFound      = "File not found. Please specify the exact file name."
	sheetNotFound     = "Spreadsheet not found or no data provided."
	sheetSearchLimit  = 5
	spreadsheetMarker = "spreadsheet"
)

type retrieveFiles struct{ p fileProvider }

func (*retrieveFiles) Name() string { return "retrieve_files" }

func (*retrieveFiles) Description() string {
	return "Retrieve file list from the user's Google Drive using pre-authorized access. Use this when the user asks about their files, documents, or drive."
}

func (*retrieveFiles) Parameters() map[string]any {
	return object(map[string]any{
		"query":       str("Optional search query for files."),
		"max_results": integer("Maximum number of files to return.", 10),
	})
}

func (t *retrieveFiles) Execute(ctx context.Context, args Args) Result {
	max := args.Int("max_results", 10)

	var files []domain.File
	var err error
	if q := args.String("query"); q != "" {
		files, err = t.p.SearchFiles(ctx, q, max)
	} else {
		files, err = t.p.ListFiles(ctx, max)
	}
	if err != nil {
		return Failed("%v", err)
	}

	list := make([]map[string]any, 0, len(files))
	for _, f := range files {
		list = append(list, map[string]any{
			"name":     orDefault(f.Name, "Unknown"),
			"mimeType": f.MimeType,
			"id":       f.ID,
		})
	}
	return Result{
		Output:  map[string]any{"files": list, "count": len(list)},
		Display: map[string]any{"type": "google.files.result", "files": nonNil(files)},
	}
}

type readFileContent struct {
	p      fileProvider
	vision domain.VisionDescriber
}

func (*readFileContent) Name() string { return "read_file_content" }

func (*readFileContent) Description() string {
	return "Read the actual content of a specific file from the user's Google Drive. Use this when the user asks to read, open, or see the content of a specific file. First use retrieve_files to find the file, then use this to read it."
}

func (*readFileContent) Parameters() map[string]any {
	return object(map[string]any{
		"file_name": str("The name of the file to read (from the file list)."),
		"file_id":   str("The ID of the file to read (from the file list)."),
	})
}

func (t *readFileContent) Execute(ctx context.Context, args Args) Result {
	id, name := args.String("file_id"), args.String("file_name")
	if id == "" && name != "" {
		files, err := t.p.SearchFiles(ctx, name, 1)
		if err != nil {
			return Failed("%v", err)
		}
		if len(files) > 0 {
			id = files[0].ID
		}
	}
	if id == "" {
		return Failed(fileNotFound)
	}

	content, err := t.p.FileContent(ctx, id)
	if err != nil {
		return Failed("%v", err)
	}

	if dataURL, ok := strings.CutPrefix(content, domain.ImageContentPrefix); ok {
		if t.vision == nil {
			return Failed("Image description is not available.")
		}
		prompt := fmt.Sprintf("Describe what you see in this image in detail. The file is named '%s'.", orDefault(name, "unknown"))
		return Result{Output: map[string]any{
			"content":   t.vision.Describe(ctx, dataURL, prompt),
			"file_name": orDefault(name, "image"),
		}}
	}

	if r := []rune(content); len(r) > maxFileContent {
		content = string(r[:maxFileContent]) + truncationNotice
	}
	return Result{Output: map[string]any{"content": content, "file_name": orDefault(name, "file")}}
}

type sheetProvider interface {
	SearchFiles(ctx context.Context, query string, max int) ([]domain.File, error)
	WriteSheet(ctx context.Context, spreadsheetID string, rows [][]string, appendRows bool) (int, error)
}

type writeToSheet struct{ p sheetProvider }

func (*writeToSheet) Name() string { return "write_to_sheet" }

func (*writeToSheet) Description() string {
	return "Write or append data to a Google Sheet. Use this when the user asks to add data, update a spreadsheet, or log information."
}

func (*writeToSheet) Parameters() map[string]any {
	return object(map[string]any{
		"spreadsheet_name": str("Name of the spreadsheet to write to."),
		"spreadsheet_id":   str("ID of the spreadsheet (if known)."),
		"data": map[string]any{
			"type":        "array",
			"description": "Data to write as rows (array of arrays).",
			"items":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"append": map[string]any{
			"type":        "boolean",
			"description": "If true, append to existing data. If false, overwrite.",
			"default":     true,
		},
	}, "data")
}

func (t *writeToSheet) Execute(ctx context.Context, args Args) Result {
	id, name := args.String("spreadsheet_id"), args.String("spreadsheet_name")
	rows := args.Rows("data")

	if id == "" && name != "" {
		files, err := t.p.SearchFiles(ctx, name, sheetSearchLimit)
		if err != nil {
			return Failed("%v", err)
		}
		for _, f := range files {
			if strings.Contains(f.MimeType, spreadsheetMarker) {
				id = f.ID
				break
			}
		}
	}
	if id == "" || len(rows) == 0 {
		return Failed(sheetNotFound)
	}

	n, err := t.p.WriteSheet(ctx, id, rows, args.Bool("append", true))
	if err != nil {
		return Failed("%v", err)
	}
	if n == 0 {
		n = len(rows)
	}
	return Result{Output: map[string]any{"status": "written", "spreadsheet_id": id, "rows_affected": n}}
}
