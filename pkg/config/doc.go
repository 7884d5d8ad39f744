/*
Package config loads plantshare configuration.

🎯 Purpose:
- Carries the identifiers the share commands run with (hub, project, folder)
- Picks the collaboration backend and session store
- Resolves per-user paths (working folder, collaboration cache) through XDG

🔄 Flow:
1. `.env` is loaded by the CLI (godotenv)
2. The config file is parsed by extension (.yaml/.yml, .hcl, .json)
3. PLANTSHARE_* variables override file values
4. Validate fills in defaults

🔍 Example:

	cfg, err := config.LoadOrDefault(ctx, ".plantshare.yaml")
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}

HCL files may read the environment through the env object:

	hub     = "Developer Advocacy Support"
	project = env.PLANT_PROJECT_ID

	session {
	  store = "redis"
	}
*/
package config
