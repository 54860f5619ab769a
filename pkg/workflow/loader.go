package workflow

import (
	"os"
	"path/filepath"

	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

var loaderLog = logger.New("workflow:loader")

// FileLoader resolves a workflow by name from the user and local
// .swissarmyhammer/workflows directories, the production counterpart to the
// in-memory WorkflowLoader test doubles. Local (the current working
// directory's own .swissarmyhammer/workflows) takes precedence over the
// user's home directory, matching pkg/resolver's layering for prompts.
type FileLoader struct {
	UserDir  string
	LocalDir string
}

// NewFileLoader builds a FileLoader rooted at $HOME/.swissarmyhammer/workflows
// and cwd/.swissarmyhammer/workflows.
func NewFileLoader(home, cwd string) *FileLoader {
	fl := &FileLoader{}
	if home != "" {
		fl.UserDir = filepath.Join(home, ".swissarmyhammer", "workflows")
	}
	if cwd != "" {
		fl.LocalDir = filepath.Join(cwd, ".swissarmyhammer", "workflows")
	}
	return fl
}

// LoadWorkflow implements WorkflowLoader.
func (fl *FileLoader) LoadWorkflow(name string) (*Workflow, error) {
	candidates := []string{}
	if fl.LocalDir != "" {
		candidates = append(candidates, filepath.Join(fl.LocalDir, name+".md"))
	}
	if fl.UserDir != "" {
		candidates = append(candidates, filepath.Join(fl.UserDir, name+".md"))
	}

	for _, path := range candidates {
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, swerr.Wrapf(swerr.KindIO, err, "reading workflow file %s", path)
		}
		w, validationErrs, err := ParseDocument(string(content))
		if err != nil {
			return nil, swerr.Wrapf(swerr.KindOther, err, "parsing workflow %s", path)
		}
		if len(validationErrs) > 0 {
			loaderLog.Printf("workflow %s loaded with validation warnings: %v", name, validationErrs)
		}
		return w, nil
	}
	return nil, swerr.Newf(swerr.KindWorkflowNotFound, "workflow not found: %s", name)
}
