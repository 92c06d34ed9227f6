package main

import (
	"flag"
	"log"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/database"
	"github.com/lapakdigital/lapakstore/internal/pkg/env"
)

// Bootstraps the first dashboard operator. There is no self-service
// registration; every operator account is created from the command line.
// Re-running with an existing email resets that operator's password.
func main() {
	name := flag.String("name", "", "operator display name")
	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "login password")
	role := flag.String("role", models.ROLE_ADMIN, "role: admin or staff")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" {
		log.Fatal("usage: createadmin -name NAME -email EMAIL -password PASSWORD [-role admin|staff]")
	}

	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	users := repository.GetGlobalRepositories().User

	if existing, err := users.GetByEmail(*email); err == nil {
		if err := existing.SetPassword(*password); err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		if err := users.Update(existing); err != nil {
			log.Fatalf("Failed to update operator: %v", err)
		}
		log.Printf("Operator %s already exists, password reset", existing.Email)
		return
	}

	user, err := models.CreateUser(*name, *email, *password, *role)
	if err != nil {
		log.Fatalf("Invalid operator data: %v", err)
	}

	if err := users.Create(user); err != nil {
		log.Fatalf("Failed to create operator: %v", err)
	}

	log.Printf("Operator %s (%s) created with role %s", user.Name, user.Email, user.Role)
}
