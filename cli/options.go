package cli

type Options struct {
	Config  string `short:"c" long:"config" description:"config file"`
	BaseURL string `short:"u" long:"url" description:"auth service base url, overrides config"`
	Metrics bool   `short:"m" long:"metrics" description:"print refresh metrics after the command"`

	Login    LoginCommand    `command:"login" description:"log in and store session credentials"`
	Register RegisterCommand `command:"register" description:"create an account and store session credentials"`
	Logout   LogoutCommand   `command:"logout" description:"clear session credentials"`
	Status   StatusCommand   `command:"status" description:"print the session authentication state"`
	Get      GetCommand      `command:"get" description:"GET a protected resource with the session credentials"`
}

type LoginCommand struct {
	Username string `short:"n" long:"username" description:"username" required:"true"`
	Password string `short:"p" long:"password" description:"password" required:"true"`
}

type RegisterCommand struct {
	Username string `short:"n" long:"username" description:"username" required:"true"`
	Password string `short:"p" long:"password" description:"password" required:"true"`
	Email    string `short:"e" long:"email" description:"email" required:"true"`
}

type LogoutCommand struct{}

type StatusCommand struct{}

type GetCommand struct {
	Args struct {
		Path string `positional-arg-name:"path" description:"resource path relative to base url" required:"yes"`
	} `positional-args:"yes"`
}
