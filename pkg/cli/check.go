package cli

import (
	"flag"
	"fmt"
	"strconv"
)

func newCheckCommand() *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Check whether a user holds a permission",
		Flags:       flag.NewFlagSet("check", flag.ExitOnError),
		Run:         runCheck,
	}

	cmd.Flags.Int64("user", 0, "User ID to check")
	cmd.Flags.String("permission", "", "Permission key (group:action)")
	cmd.Flags.String("org-type", "", "Organization type for a scoped check")
	cmd.Flags.Int64("org-id", 0, "Organization ID for a scoped check")
	cmd.Flags.String("server", "http://localhost:8080", "Gatekeeper server URL")
	cmd.Flags.String("actor", "", "Acting user ID sent as X-Actor-ID")

	return cmd
}

func runCheck(args []string) error {
	cmd := newCheckCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	userID, _ := strconv.ParseInt(cmd.Flags.Lookup("user").Value.String(), 10, 64)
	permission := cmd.Flags.Lookup("permission").Value.String()
	orgType := cmd.Flags.Lookup("org-type").Value.String()
	orgID, _ := strconv.ParseInt(cmd.Flags.Lookup("org-id").Value.String(), 10, 64)
	server := cmd.Flags.Lookup("server").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()

	if userID <= 0 || permission == "" {
		return fmt.Errorf("user and permission are required")
	}
	if (orgType == "") != (orgID == 0) {
		return fmt.Errorf("org-type and org-id must be given together")
	}

	body := map[string]interface{}{
		"user_id":    userID,
		"permission": permission,
	}
	if orgType != "" {
		body["org_type"] = orgType
		body["org_id"] = orgID
	}

	var resp struct {
		Granted bool `json:"granted"`
	}
	if err := newClient(server, actor).do("POST", "/v1/check", body, &resp); err != nil {
		return err
	}

	if resp.Granted {
		fmt.Println("granted")
	} else {
		fmt.Println("denied")
	}
	return nil
}
