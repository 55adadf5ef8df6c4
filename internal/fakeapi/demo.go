package fakeapi

// Demo returns a server preloaded with the newsletters served by stk mock:
//
//	astral    healthy archive and jobs, some paid posts
//	flaky     catalog stream cut after two batches, job streams cut early
//	brittle   jobs fail while converting the second post
//	offline   every stream refused
func Demo(opts Options) *Server {
	s := NewServer(opts)
	s.AddNewsletter(Newsletter{
		Subdomain: "astral",
		Posts:     GeneratePosts("astral", 64, 5),
		BatchSize: 16,
	})
	s.AddNewsletter(Newsletter{
		Subdomain: "flaky",
		Posts:     GeneratePosts("flaky", 40, 0),
		BatchSize: 10,
		DropAfter: 2,
		Job:       JobScript{DropAfter: 4},
	})
	s.AddNewsletter(Newsletter{
		Subdomain: "brittle",
		Posts:     GeneratePosts("brittle", 12, 0),
		Job:       JobScript{FailAt: 2},
	})
	s.AddNewsletter(Newsletter{
		Subdomain: "offline",
		Posts:     GeneratePosts("offline", 8, 0),
		Refuse:    true,
		Job:       JobScript{Refuse: true},
	})
	return s
}
