package core

import "strings"

// CategoryInfo is one row of the static classification table.
type CategoryInfo struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
	// Starter lists the "Start in 15 minutes" steps given to the narrative.
	Starter []string `json:"starter_steps"`
}

var categoryTable = []CategoryInfo{
	{
		Category: CategoryDatabase,
		Label:    "Database / BaaS",
		Keywords: []string{"postgres", "postgresql", "mysql", "mariadb", "sqlite", "mongodb", "mongo", "dynamodb", "firestore", "firebase", "supabase", "cassandra", "cockroachdb", "planetscale", "neon", "couchdb", "fauna", "redis", "elasticsearch", "appwrite", "pocketbase", "convex"},
		Starter: []string{
			"Create a project in the winner's console and copy the connection URL and anon/service keys into .env",
			"Install the official client SDK for your stack and initialise it from environment variables",
			"Create one table or collection, insert a row, and read it back from your app",
		},
	},
	{
		Category: CategoryWebFramework,
		Label:    "Web framework",
		Keywords: []string{"django", "flask", "fastapi", "rails", "ruby on rails", "laravel", "express", "nestjs", "spring", "spring boot", "gin", "fiber", "echo", "phoenix", "next.js", "nextjs", "remix", "nuxt", "sveltekit", "asp.net", "hono", "koa"},
		Starter: []string{
			"Scaffold a new app with the framework's official generator",
			"Add one JSON route and one HTML page, then run the dev server",
			"Wire your database client and deploy the hello-world to a free tier",
		},
	},
	{
		Category: CategoryFrontend,
		Label:    "Frontend",
		Keywords: []string{"react", "vue", "angular", "svelte", "solidjs", "solid.js", "preact", "ember", "htmx", "astro", "qwik", "tailwind", "bootstrap", "alpine.js"},
		Starter: []string{
			"Create a project with Vite (or the framework's CLI) and start the dev server",
			"Build one component that fetches data from your API",
			"Add routing and deploy the preview to Vercel or Netlify",
		},
	},
	{
		Category: CategoryLanguage,
		Label:    "Programming language",
		Keywords: []string{"go", "golang", "rust", "python", "java", "javascript", "typescript", "node", "node.js", "nodejs", "deno", "bun", "ruby", "php", "elixir", "erlang", "kotlin", "swift", "c#", "c++", "scala", "haskell", "zig", "clojure", "dart"},
		Starter: []string{
			"Install the toolchain with the official installer or version manager",
			"Create a project with the standard layout and package manager",
			"Write a small HTTP handler with one test and run both locally",
		},
	},
	{
		Category: CategoryInfrastructure,
		Label:    "Infrastructure",
		Keywords: []string{"aws", "gcp", "google cloud", "azure", "kubernetes", "k8s", "docker", "docker compose", "terraform", "pulumi", "nomad", "ecs", "lambda", "cloud run", "cloudflare workers", "ansible"},
		Starter: []string{
			"Create an account and a billing alert before anything else",
			"Describe one service in code (Dockerfile, manifest or IaC module)",
			"Apply it to a sandbox environment and tear it down again",
		},
	},
	{
		Category: CategoryHosting,
		Label:    "Hosting / deployment",
		Keywords: []string{"vercel", "netlify", "heroku", "railway", "render", "fly.io", "digitalocean", "cloudflare pages", "github pages", "firebase hosting", "amplify", "hetzner", "linode", "coolify"},
		Starter: []string{
			"Install the platform CLI and log in",
			"Link your repository and set environment variables in the dashboard",
			"Deploy the current branch and open the preview URL",
		},
	},
	{
		Category: CategoryAuth,
		Label:    "Authentication",
		Keywords: []string{"auth0", "clerk", "nextauth", "next-auth", "auth.js", "okta", "cognito", "keycloak", "supertokens", "firebase auth", "supabase auth", "lucia", "passport", "workos", "stytch"},
		Starter: []string{
			"Create an application in the provider dashboard and copy the client keys",
			"Install the SDK and wrap your app with the provider component or middleware",
			"Protect one route and sign in with a test account",
		},
	},
	{
		Category: CategoryPayment,
		Label:    "Payments",
		Keywords: []string{"stripe", "paypal", "paddle", "lemon squeezy", "lemonsqueezy", "braintree", "square", "adyen", "razorpay", "mollie", "chargebee"},
		Starter: []string{
			"Create a test-mode account and copy the secret key into .env",
			"Create one product and price, then generate a checkout session",
			"Handle the payment-succeeded webhook locally with the provider CLI",
		},
	},
	{
		Category: CategoryStorage,
		Label:    "Object storage",
		Keywords: []string{"s3", "amazon s3", "aws s3", "cloudflare r2", "backblaze", "minio", "google cloud storage", "gcs", "azure blob", "cloudinary", "uploadthing", "wasabi"},
		Starter: []string{
			"Create a bucket and an access key scoped to it",
			"Upload a file with the SDK using credentials from environment variables",
			"Serve it back through a signed URL",
		},
	},
	{
		Category: CategoryMessaging,
		Label:    "Messaging / queues",
		Keywords: []string{"kafka", "rabbitmq", "nats", "sqs", "sns", "pulsar", "pubsub", "pub/sub", "redis streams", "mqtt", "zeromq", "activemq", "kinesis", "bullmq", "celery", "temporal"},
		Starter: []string{
			"Start a local broker with Docker",
			"Publish one message from a producer script",
			"Consume and acknowledge it from a worker process",
		},
	},
}

var otherStarter = []string{
	"Sign up or install the winner using its official getting-started guide",
	"Grab your keys or config and store them in environment variables",
	"Build the smallest end-to-end slice of your use case with it",
}

// Categories returns the static keyword table.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryTable))
	copy(out, categoryTable)
	return out
}

// ClassifyOption maps an option name to a category by case-insensitive
// substring match. The longest matching keyword wins, so "Firebase Auth"
// lands in auth rather than database and "MongoDB" is not read as "go".
func ClassifyOption(name string) Category {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return CategoryOther
	}
	best, bestLen := CategoryOther, 0
	for _, row := range categoryTable {
		for _, kw := range row.Keywords {
			if len(kw) > bestLen && strings.Contains(n, kw) {
				best, bestLen = row.Category, len(kw)
			}
		}
	}
	return best
}

// Classify adopts a category only when both options agree.
func Classify(optionA, optionB string) Category {
	a, b := ClassifyOption(optionA), ClassifyOption(optionB)
	if a == b {
		return a
	}
	return CategoryOther
}

// StarterSteps returns the static next steps for a category.
func StarterSteps(c Category) []string {
	for _, row := range categoryTable {
		if row.Category == c {
			return row.Starter
		}
	}
	return otherStarter
}
