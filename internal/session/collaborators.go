package session

import "github.com/starford/subwiki/internal/navigation"

// Presenter displays pages and messages. All calls are made from the
// session loop and must not block.
type Presenter interface {
	RenderHTML(html string)
	ScrollToTop()
	ShowTransientMessage(text string)
	// CloseView ends the current view after an unrecoverable navigation.
	CloseView()
}

// Opener hands a URI the wiki does not understand to the host system.
type Opener interface {
	OpenExternally(uri string)
}

// Editor receives edit requests. The result comes back later through
// Session.CompleteEdit; RequestEdit itself must not block.
type Editor interface {
	RequestEdit(req EditRequest)
}

// EditRequest asks the editor for new content of one note.
type EditRequest struct {
	ID       string   `json:"id"`
	FileName string   `json:"file_name"`
	Content  string   `json:"content"`
	SubWiki  []string `json:"sub_wiki,omitempty"`
	// IsNew is set when the note does not exist yet and saving creates it.
	IsNew bool `json:"is_new,omitempty"`
}

// EditResult is the editor's answer to an EditRequest.
type EditResult struct {
	RequestID string `json:"request_id"`
	Content   string `json:"content"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Compiler turns note source into an HTML fragment.
type Compiler interface {
	Compile(source string) string
}

// TransitionFunc observes every applied navigation. It runs on the
// background worker.
type TransitionFunc func(navigation.Snapshot)
