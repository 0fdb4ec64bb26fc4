package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/cache"
	"github.com/antonio-alexander/go-attendance/internal/client"
	"github.com/antonio-alexander/go-attendance/internal/data"

	"github.com/pkg/errors"
)

var (
	Version   string
	GitCommit string
	GitBranch string
)

func init() {
	if Version = data.Version; Version == "" {
		Version = "<no_version_provided>"
	}
	if GitCommit = data.GitCommit; GitCommit == "" {
		GitCommit = "<no_git_commit>"
	}
	if GitBranch = data.GitBranch; GitBranch == "" {
		GitBranch = "<no_git_branch>"
	}
}

func main() {
	args := os.Args[1:]
	envs, err := internal.LoadEnvs(os.Environ())
	if err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, syscall.SIGINT, syscall.SIGTERM)
	if err := Main(args, envs, osSignal); err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
}

func printJson(item any) error {
	byts, err := json.MarshalIndent(item, "", " ")
	if err != nil {
		return err
	}
	fmt.Println(string(byts))
	return nil
}

// partialFromEnvs builds a partial from the fields present in envs.
func partialFromEnvs(envs map[string]string) (data.EmployeePartial, error) {
	var employeePartial data.EmployeePartial

	for key, field := range map[string]**string{
		"NAME":              &employeePartial.Name,
		"EMAIL":             &employeePartial.Email,
		"DEPARTMENT":        &employeePartial.Department,
		"ATTENDANCE_STATUS": &employeePartial.AttendanceStatus,
	} {
		if value, ok := envs[key]; ok {
			*field = &value
		}
	}
	if clockIn, ok := envs["CLOCK_IN_TIME"]; ok {
		t, err := time.Parse(time.RFC3339, clockIn)
		if err != nil {
			return employeePartial, errors.Wrap(err, "CLOCK_IN_TIME must be RFC3339")
		}
		clockInTime := t.Unix()
		employeePartial.ClockInTime = &clockInTime
	}
	return employeePartial, nil
}

func Main(args []string, envs map[string]string, osSignal chan (os.Signal)) error {
	fmt.Printf("client: go-attendance v%s (%s) built from: %s\n",
		Version, GitCommit, GitBranch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-osSignal:
			cancel()
		case <-ctx.Done():
		}
	}()

	//create cache
	cache := cache.NewMemory()
	if err := cache.Configure(envs); err != nil {
		return err
	}
	if err := cache.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(context.Background()); err != nil {
			fmt.Printf("error while closing cache: %s\n", err)
		}
	}()

	//create client
	client := client.NewClient(cache)
	if err := client.Configure(envs); err != nil {
		return err
	}
	if err := client.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			fmt.Printf("error while closing client: %s\n", err)
		}
	}()

	// execute command
	id, _ := strconv.ParseInt(envs["EMPLOYEE_ID"], 10, 64)
	switch command := envs["COMMAND"]; command {
	default:
		return errors.Errorf("unsupported command: %s", command)
	case "employee_create":
		employeePartial, err := partialFromEnvs(envs)
		if err != nil {
			return err
		}
		employee, err := client.EmployeeCreate(ctx, employeePartial)
		if err != nil {
			return err
		}
		return printJson(employee)
	case "employee_read":
		employee, err := client.EmployeeRead(ctx, id)
		if err != nil {
			return err
		}
		return printJson(employee)
	case "employees_search":
		employees, err := client.EmployeesSearch(ctx, data.EmployeeSearch{
			NameContains: envs["SEARCH"],
		})
		if err != nil {
			return err
		}
		return printJson(employees)
	case "employee_update":
		employeePartial, err := partialFromEnvs(envs)
		if err != nil {
			return err
		}
		employee, result, err := client.EmployeeUpdate(ctx, id, employeePartial)
		if err != nil {
			return err
		}
		if err := result.Err(); err != nil {
			return err
		}
		return printJson(employee)
	case "employee_delete":
		return client.EmployeeDelete(ctx, id)
	case "dashboard":
		var referenceDate time.Time

		if date := envs["DATE"]; date != "" {
			t, err := time.Parse(data.DateFormat, date)
			if err != nil {
				return err
			}
			referenceDate = t
		}
		attendance, err := client.Dashboard(ctx, referenceDate, envs["SEARCH"])
		if err != nil {
			return err
		}
		return printJson(attendance)
	case "report":
		report, filename, err := client.Report(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filename, report, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", filename)
	case "employee_import":
		result, err := client.EmployeeImport(ctx)
		if err != nil {
			return err
		}
		return printJson(result)
	}
	return nil
}
