// Package cmd implements the command-line interface for slotkeeper.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the availability tools
//   - slots: Print a tenant's slots for a date
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
