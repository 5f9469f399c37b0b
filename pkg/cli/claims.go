package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
)

func newClaimsCommand() *Command {
	cmd := &Command{
		Name:        "claims",
		Description: "Show a user's resolved claims snapshot",
		Flags:       flag.NewFlagSet("claims", flag.ExitOnError),
		Run:         runClaims,
	}

	cmd.Flags.Int64("user", 0, "User ID")
	cmd.Flags.String("server", "http://localhost:8080", "Gatekeeper server URL")
	cmd.Flags.String("actor", "", "Acting user ID sent as X-Actor-ID")

	return cmd
}

func runClaims(args []string) error {
	cmd := newClaimsCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	userID, _ := strconv.ParseInt(cmd.Flags.Lookup("user").Value.String(), 10, 64)
	server := cmd.Flags.Lookup("server").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()

	if userID <= 0 {
		return fmt.Errorf("user is required")
	}

	var claims json.RawMessage
	path := fmt.Sprintf("/v1/users/%d/claims", userID)
	if err := newClient(server, actor).do("GET", path, nil, &claims); err != nil {
		return err
	}

	pretty, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format claims: %w", err)
	}
	fmt.Println(string(pretty))
	return nil
}

func newInvalidateCommand() *Command {
	cmd := &Command{
		Name:        "invalidate",
		Description: "Drop a user's cached claims",
		Flags:       flag.NewFlagSet("invalidate", flag.ExitOnError),
		Run:         runInvalidate,
	}

	cmd.Flags.Int64("user", 0, "User ID")
	cmd.Flags.String("server", "http://localhost:8080", "Gatekeeper server URL")
	cmd.Flags.String("actor", "", "Acting user ID sent as X-Actor-ID")

	return cmd
}

func runInvalidate(args []string) error {
	cmd := newInvalidateCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	userID, _ := strconv.ParseInt(cmd.Flags.Lookup("user").Value.String(), 10, 64)
	server := cmd.Flags.Lookup("server").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()

	if userID <= 0 {
		return fmt.Errorf("user is required")
	}

	path := fmt.Sprintf("/v1/users/%d/claims", userID)
	if err := newClient(server, actor).do("DELETE", path, nil, nil); err != nil {
		return err
	}
	fmt.Printf("invalidated claims for user %d\n", userID)
	return nil
}
