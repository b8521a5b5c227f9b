package main

import (
	"fmt"
	"os"

	"github.com/SanjayB2005/TaskManagement/migrations"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "kanban-migrate"}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			fmt.Printf("No .env file found or failed to load: %v. Using flags.\n", err)
		}

		driver, _ := cmd.Flags().GetString("driver")
		if driver == "" {
			driver = os.Getenv("DB_DRIVER")
		}
		if driver == "" {
			driver = "postgres"
		}

		connStr, _ := cmd.Flags().GetString("db")
		if connStr == "" {
			connStr = os.Getenv("DATABASE_URL")
		}
		if connStr == "" && driver == "postgres" {
			dbUsername := os.Getenv("DB_USERNAME")
			dbPassword := os.Getenv("DB_PASSWORD")
			dbHost := os.Getenv("DB_HOST")
			dbPort := os.Getenv("DB_PORT")
			dbName := os.Getenv("DB_NAME")
			if dbUsername != "" && dbHost != "" && dbPort != "" && dbName != "" {
				connStr = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
					dbUsername, dbPassword, dbHost, dbPort, dbName)
			}
		}
		if connStr == "" {
			fmt.Println("Error: --db flag, DATABASE_URL or complete DB_* env vars (DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME) required")
			os.Exit(1)
		}

		if err := migrations.UpURL(driver, connStr); err != nil {
			fmt.Printf("Failed to apply migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied successfully")
	},
}

func main() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("db", "", "Database connection string (optional if DATABASE_URL or DB_* env vars are set)")
	migrateCmd.Flags().String("driver", "", "postgres or sqlite3 (default postgres)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
