package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cort/triage/internal/github"
	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
	"github.com/cort/triage/internal/summarize"
	"github.com/joho/godotenv"
)

func main() {
	apiURL := flag.String("api_url", "", "GitHub API URL for Enterprise instances")
	githubToken := flag.String("github_token", "", "GitHub token for this specific project")
	mainBranch := flag.String("main_branch", "", "main branch of the project (default: main)")
	sourceExt := flag.String("source_ext", "", "source file extension (default: .py)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] <owner/repo> <src_folder>\n\nOnboard a project: clone the repository and build its codebase understanding.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), flag.Arg(0), flag.Arg(1), *apiURL, *githubToken, *mainBranch, *sourceExt); err != nil {
		log.Fatalf("[Onboard] %v", err)
	}
}

func run(ctx context.Context, repoFullName, srcFolder, apiURL, githubToken, mainBranch, sourceExt string) error {
	_ = godotenv.Load()

	token := githubToken
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	storePath := os.Getenv("PROJECTS_STORE")
	if token == "" || storePath == "" {
		return fmt.Errorf("environment variables GITHUB_TOKEN and PROJECTS_STORE must be set")
	}

	manager, err := project.NewManager(storePath)
	if err != nil {
		return err
	}

	info, ok := manager.Get(repoFullName)
	if !ok {
		info = project.Info{
			RepoFullName: repoFullName,
			SrcFolder:    srcFolder,
			APIURL:       apiURL,
			GitHubToken:  githubToken,
			MainBranch:   mainBranch,
			SourceExt:    sourceExt,
		}
		if info.MainBranch == "" {
			info.MainBranch = os.Getenv("MAIN_BRANCH")
		}
		if info.MainBranch == "" {
			info.MainBranch = "main"
		}
		if err := manager.Add(info); err != nil {
			return err
		}
		log.Printf("[Onboard] Registered project %s", repoFullName)
	}

	provider := os.Getenv("MODEL_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	invoker, err := model.NewInvoker(ctx, &model.Config{
		Provider:      provider,
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize model backend: %w", err)
	}

	proj := project.New(storePath, info)
	proj.SetSummarizer(summarize.ForExtension(invoker, info.Ext()))

	log.Printf("[Onboard] Cloning %s", repoFullName)
	if err := github.Sync(info.RepoFullName, info.MainBranch, token, info.APIURL, proj.RepoFolder); err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	log.Printf("[Onboard] Building codebase understanding for %s", repoFullName)
	if err := proj.UpdateCodebaseUnderstanding(ctx, nil); err != nil {
		return fmt.Errorf("failed to build codebase understanding: %w", err)
	}

	log.Printf("[Onboard] Project %s onboarded successfully", repoFullName)
	return nil
}
