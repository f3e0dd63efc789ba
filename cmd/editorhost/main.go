// Editorhost self-hosts a browser code editor behind a static server.
package main

import (
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/cli"
)

func main() {
	cli.Execute()
}
