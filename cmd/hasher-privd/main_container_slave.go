package main

import (
	"github.com/spf13/cobra"

	"github.com/altlinux/hasher-priv/internal/container"
)

func newContainerSlaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "__container-slave",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return container.RunContainerSlave()
		},
	}
}
