package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"foampilot/cmd/pilot/config"
	"foampilot/internal/attach"
)

var attachList bool

// attachCmd queues a mesh file for the next submission.
var attachCmd = &cobra.Command{
	Use:   "attach [mesh.msh]",
	Short: "Queue a mesh file for the next submission",
	Long: `Copies a .msh mesh file into the attachment directory. The newest
queued mesh accompanies the next job submission. Other formats are
rejected; convert first.`,
	RunE: runAttachCmd,
}

func init() {
	attachCmd.Flags().BoolVar(&attachList, "list", false, "List queued meshes instead of adding one")
}

func runAttachCmd(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	dir, err := config.AttachDirPath(cfg)
	if err != nil {
		return err
	}
	store, err := attach.NewStore(dir)
	if err != nil {
		return err
	}

	if attachList || len(args) == 0 {
		meshes, err := store.List()
		if err != nil {
			return err
		}
		if len(meshes) == 0 {
			fmt.Println("No meshes queued. Use 'pilot attach <path/to/mesh.msh>' to add one.")
			return nil
		}
		fmt.Println("Queued meshes (newest first):")
		for i, mesh := range meshes {
			marker := ""
			if i == 0 {
				marker = "  <- next submission"
			}
			fmt.Printf("  %s  %d bytes  %s%s\n",
				mesh.Name, mesh.Size, mesh.ModTime.Format("2006-01-02 15:04"), marker)
		}
		return nil
	}

	dest, err := store.Add(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Mesh queued: %s\n", dest)
	return nil
}
