package config

// defaults returns the built-in configuration tree. Every key the pipeline
// reads has a sensible default here so a missing config directory still
// yields a runnable store. Keys without a safe default (API tokens,
// collection ids) are intentionally absent and surface through Require.
func defaults() map[string]any {
	return map[string]any{
		"paths": map[string]any{
			"root":      "~/voicepipe",
			"usb":       "/media/usb/RECORDER",
			"audio_ext": ".wav",
		},
		"validate": map[string]any{
			"min_bytes":            int64(1024),
			"min_duration_seconds": 3,
			"max_duration_seconds": 0, // 0 = no upper bound
			"min_free_disk_mb":     100,
			"max_transcript_bytes": 1 * 1024 * 1024,
		},
		"transcribe": map[string]any{
			"backend":          "auto", // auto | cloud | local
			"workers":          3,
			"batch_minutes":    7,
			"bytes_per_minute": 960000, // size->duration heuristic when no container header
			"cloud": map[string]any{
				"model":          "gpt-4o-mini-transcribe",
				"max_file_mb":    25,
				"api_key_env":    "OPENAI_API_KEY",
				"language":       "",
				"timeout_floor":  "20m",
				"timeout_factor": 0.5,
			},
			"local": map[string]any{
				"command":     "whisper-cli",
				"model_path":  "",
				"max_file_mb": 0, // 0 = unlimited
			},
		},
		"process": map[string]any{
			"parallelism":    1, // bounded at 2
			"word_threshold": 800,
		},
		"llm": map[string]any{
			"model":               "gpt-4o-mini",
			"max_tokens":          1500,
			"timeout_seconds":     60,
			"base_url":            "", // empty = api.openai.com via SDK client
			"api_key_env":         "OPENAI_API_KEY",
			"requests_per_minute": 30,
		},
		"kb": map[string]any{
			"base_url":        "https://api.notion.com",
			"version":         "2022-06-28",
			"timeout_seconds": 30,
			"block_limit":     2000,
			"token_env":       "NOTION_TOKEN",
			// Collection ids have no defaults; Require surfaces the
			// missing ones at startup.
			"collections": map[string]any{
				"tasks":    "",
				"notes":    "",
				"research": "",
				"projects": "",
			},
			"properties": map[string]any{
				"title":   "Name",
				"tags":    "Tags",
				"due":     "Due",
				"project": "Project",
				"aliases": "Aliases",
				"status":  "Status",
			},
		},
		"catalog": map[string]any{
			"freshness_minutes": 60,
			"threshold":         0.80,
		},
		// Last-resort project list for when the knowledge base is
		// unreachable and no cache exists. Users fill this in
		// projects.yaml; there is no sensible built-in value.
		"projects": map[string]any{
			"fallback": []any{},
		},
		"archive": map[string]any{
			"dir_name":       "Recording Archives",
			"retention_days": 7,
		},
		"monitor": map[string]any{
			"cpu_soft_cap":            70.0,
			"sample_interval_seconds": 1,
		},
		"patterns": map[string]any{
			"communications": []any{
				"call", "email", "reply", "respond", "message", "text",
				"schedule with", "follow up", "follow-up", "meet with",
				"ping", "reach out", "get back to",
			},
			"needs_human_review": []any{
				"not sure", "double check", "double-check", "verify this",
				"unclear", "maybe", "might be wrong",
			},
			"needs_external_input": []any{
				"home", "family", "house", "apartment", "medical", "doctor",
				"dentist", "insurance", "immigration", "visa", "lease",
				"mortgage", "wife", "husband", "partner", "kids",
			},
		},
		"durations": map[string]any{
			"quick": map[string]any{
				"minutes": 2,
				"keywords": []any{
					"reply", "respond", "confirm", "send", "ping", "text",
					"quick", "check", "rsvp", "accept", "decline",
				},
			},
			"medium": map[string]any{
				"minutes": 20,
				"keywords": []any{
					"research", "compare", "review", "decide", "look into",
					"schedule", "book", "draft", "summarize", "find",
				},
			},
			"long": map[string]any{
				"minutes": 120,
				"keywords": []any{
					"build", "write", "design", "plan", "refactor", "migrate",
					"organize", "deep dive", "project", "implement", "overhaul",
					"set up", "clean up", "restructure",
				},
			},
		},
		"icons": map[string]any{
			"default": "📄",
			"map":     defaultIconMap(),
		},
		"prompts": defaultPrompts(),
	}
}

// defaultIconMap maps content keywords to a single glyph. Longest phrase
// wins at match time, so multi-word entries here beat their substrings.
func defaultIconMap() map[string]any {
	return map[string]any{
		"call":          "📞",
		"phone":         "📞",
		"email":         "📧",
		"reply":         "📧",
		"message":       "💬",
		"meeting":       "🗓️",
		"schedule":      "🗓️",
		"calendar":      "🗓️",
		"appointment":   "🗓️",
		"buy":           "🛒",
		"purchase":      "🛒",
		"grocery":       "🛒",
		"groceries":     "🛒",
		"order":         "📦",
		"package":       "📦",
		"shipping":      "📦",
		"pay":           "💳",
		"payment":       "💳",
		"invoice":       "💳",
		"bank":          "🏦",
		"money":         "💰",
		"budget":        "💰",
		"tax":           "🧾",
		"taxes":         "🧾",
		"research":      "🔍",
		"investigate":   "🔍",
		"look into":     "🔍",
		"read":          "📖",
		"book":          "📖",
		"article":       "📖",
		"write":         "✍️",
		"draft":         "✍️",
		"blog":          "✍️",
		"code":          "💻",
		"bug":           "🐛",
		"fix":           "🔧",
		"repair":        "🔧",
		"database":      "🗄️",
		"backup":        "💾",
		"server":        "🖥️",
		"deploy":        "🚀",
		"launch":        "🚀",
		"idea":          "💡",
		"brainstorm":    "💡",
		"doctor":        "🩺",
		"dentist":       "🦷",
		"medical":       "🩺",
		"medication":    "💊",
		"pharmacy":      "💊",
		"gym":           "🏋️",
		"workout":       "🏋️",
		"exercise":      "🏃",
		"run":           "🏃",
		"travel":        "✈️",
		"flight":        "✈️",
		"trip":          "🧳",
		"hotel":         "🏨",
		"car":           "🚗",
		"drive":         "🚗",
		"home":          "🏠",
		"house":         "🏠",
		"clean":         "🧹",
		"cleaning":      "🧹",
		"laundry":       "🧺",
		"cook":          "🍳",
		"recipe":        "🍳",
		"dinner":        "🍽️",
		"birthday":      "🎂",
		"gift":          "🎁",
		"present":       "🎁",
		"music":         "🎵",
		"video":         "🎬",
		"photo":         "📷",
		"print":         "🖨️",
		"sign":          "🖊️",
		"contract":      "📜",
		"legal":         "⚖️",
		"immigration":   "🛂",
		"visa":          "🛂",
		"plant":         "🪴",
		"garden":        "🪴",
		"dog":           "🐕",
		"cat":           "🐈",
		"vet":           "🐾",
		"second brain":  "🧠",
		"knowledge":     "🧠",
		"productivity":  "⚡",
		"habit":         "🔁",
		"routine":       "🔁",
		"goal":          "🎯",
		"deadline":      "⏰",
		"urgent":        "🔥",
		"waiting":       "⏳",
	}
}
