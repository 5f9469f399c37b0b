package cli

import (
	"flag"
	"fmt"
	"strconv"
)

func newRolesCommand() *Command {
	cmd := &Command{
		Name:        "roles",
		Description: "List roles, globally or within one organization",
		Flags:       flag.NewFlagSet("roles", flag.ExitOnError),
		Run:         runRoles,
	}

	cmd.Flags.String("org-type", "", "Organization type")
	cmd.Flags.Int64("org-id", 0, "Organization ID")
	cmd.Flags.String("server", "http://localhost:8080", "Gatekeeper server URL")
	cmd.Flags.String("actor", "", "Acting user ID sent as X-Actor-ID")

	return cmd
}

func runRoles(args []string) error {
	cmd := newRolesCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	orgType := cmd.Flags.Lookup("org-type").Value.String()
	orgID, _ := strconv.ParseInt(cmd.Flags.Lookup("org-id").Value.String(), 10, 64)
	server := cmd.Flags.Lookup("server").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()

	if (orgType == "") != (orgID == 0) {
		return fmt.Errorf("org-type and org-id must be given together")
	}

	path := "/v1/roles"
	if orgType != "" {
		path = fmt.Sprintf("/v1/roles?org_type=%s&org_id=%d", orgType, orgID)
	}

	var list []struct {
		UUID   string   `json:"uuid"`
		Name   string   `json:"name"`
		Type   string   `json:"type"`
		Order  int      `json:"order"`
		Grants []string `json:"grants"`
	}
	if err := newClient(server, actor).do("GET", path, nil, &list); err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("no roles")
		return nil
	}
	for _, role := range list {
		fmt.Printf("%-38s %-20s %-8s order=%-5d grants=%d\n",
			role.UUID, role.Name, role.Type, role.Order, len(role.Grants))
	}
	return nil
}

func newAssignCommand() *Command {
	cmd := &Command{
		Name:        "assign",
		Description: "Assign a role to a user",
		Flags:       flag.NewFlagSet("assign", flag.ExitOnError),
		Run:         runAssign,
	}

	cmd.Flags.String("role", "", "Role UUID")
	cmd.Flags.Int64("user", 0, "User ID")
	cmd.Flags.String("server", "http://localhost:8080", "Gatekeeper server URL")
	cmd.Flags.String("actor", "", "Acting user ID sent as X-Actor-ID")

	return cmd
}

func runAssign(args []string) error {
	cmd := newAssignCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	roleUUID := cmd.Flags.Lookup("role").Value.String()
	userID, _ := strconv.ParseInt(cmd.Flags.Lookup("user").Value.String(), 10, 64)
	server := cmd.Flags.Lookup("server").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()

	if roleUUID == "" || userID <= 0 {
		return fmt.Errorf("role and user are required")
	}

	path := fmt.Sprintf("/v1/roles/%s/assignments", roleUUID)
	body := map[string]interface{}{"user_id": userID}
	if err := newClient(server, actor).do("POST", path, body, nil); err != nil {
		return err
	}
	fmt.Printf("assigned role %s to user %d\n", roleUUID, userID)
	return nil
}

func newRevokeCommand() *Command {
	cmd := &Command{
		Name:        "revoke",
		Description: "Revoke a user's role assignment",
		Flags:       flag.NewFlagSet("revoke", flag.ExitOnError),
		Run:         runRevoke,
	}

	cmd.Flags.String("role", "", "Role UUID")
	cmd.Flags.Int64("user", 0, "User ID")
	cmd.Flags.String("server", "http://localhost:8080", "Gatekeeper server URL")
	cmd.Flags.String("actor", "", "Acting user ID sent as X-Actor-ID")

	return cmd
}

func runRevoke(args []string) error {
	cmd := newRevokeCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	roleUUID := cmd.Flags.Lookup("role").Value.String()
	userID, _ := strconv.ParseInt(cmd.Flags.Lookup("user").Value.String(), 10, 64)
	server := cmd.Flags.Lookup("server").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()

	if roleUUID == "" || userID <= 0 {
		return fmt.Errorf("role and user are required")
	}

	path := fmt.Sprintf("/v1/roles/%s/assignments/%d", roleUUID, userID)
	if err := newClient(server, actor).do("DELETE", path, nil, nil); err != nil {
		return err
	}
	fmt.Printf("revoked role %s from user %d\n", roleUUID, userID)
	return nil
}
