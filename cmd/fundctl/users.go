package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/logger"
	"family-fund-backend/internal/repository"
	"family-fund-backend/internal/services/users"
)

var (
	flagActorEmail string
	flagForce      bool
)

var dependentsCmd = &cobra.Command{
	Use:   "dependents <user-id>",
	Short: "Count the rows that reference a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runDependents,
}

var deleteUserCmd = &cobra.Command{
	Use:   "delete-user <user-id>",
	Short: "Delete a user, cascading with --force",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteUser,
}

func init() {
	deleteUserCmd.Flags().StringVar(&flagActorEmail, "actor", "", "Email of the admin performing the deletion")
	deleteUserCmd.Flags().BoolVar(&flagForce, "force", false, "Remove or detach every dependent row")
	_ = deleteUserCmd.MarkFlagRequired("actor")

	rootCmd.AddCommand(dependentsCmd)
	rootCmd.AddCommand(deleteUserCmd)
}

func runDependents(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	_, db, log, err := setup()
	if err != nil {
		return err
	}

	counts, err := users.NewCoordinator(db, logger.Component(log, "users")).Dependents(cmd.Context(), userID)
	if err != nil {
		return err
	}
	printCounts(counts)
	return nil
}

func runDeleteUser(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	cfg, db, log, err := setup()
	if err != nil {
		return err
	}

	actor, err := repository.NewUserRepository(db.WithContext(cmd.Context())).GetByEmail(flagActorEmail)
	if err != nil {
		return err
	}
	caller := identity.NewResolver(cfg.AdminEmails).Resolve(actor.ID, actor.Email)

	res, err := users.NewCoordinator(db, logger.Component(log, "users")).Delete(cmd.Context(), caller, userID, flagForce)
	var deps *apperrors.HasDependentsError
	if errors.As(err, &deps) {
		printCounts(deps.Counts)
		return fmt.Errorf("%w (rerun with --force to cascade)", err)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func printCounts(counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEPENDENT\tROWS")
	var total int64
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, counts[k])
		total += counts[k]
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	w.Flush()
}
