package auth

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Structs

// FileAuthenticator contains file based authentication
// information, that is the list of users sorted by name.
type FileAuthenticator struct {
	Users []User
}

// User holds name and password from one line from users file.
// Password is either a bcrypt hash or the plain password.
type User struct {
	ID       int
	Name     string
	Password string
}

// Functions

// NewFileAuthenticator takes in a file name and a separator,
// reads in specified file and parses it line by line as
// username - password elements separated by the separator.
// Empty lines and lines starting with '#' are skipped. Users
// receive IDs in the order they appear in the file.
func NewFileAuthenticator(file string, sep string) (*FileAuthenticator, error) {

	if sep == "" {
		return nil, errors.New("separator of users file must not be empty")
	}

	// Open file with authentication information.
	handle, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "could not open supplied authentication file")
	}
	defer handle.Close()

	// Reserve space for the ordered users list in memory.
	users := make([]User, 0, 50)

	// Create a new scanner on top of file handle.
	scanner := bufio.NewScanner(handle)

	lineNum := 0
	for scanner.Scan() {

		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Split read line based on separator defined in config file.
		userData := strings.SplitN(line, sep, 2)
		if len(userData) != 2 || userData[0] == "" || userData[1] == "" {
			return nil, errors.Errorf("malformed line %d in authentication file %s", lineNum, file)
		}

		users = append(users, User{
			ID:       len(users) + 1,
			Name:     userData[0],
			Password: userData[1],
		})
	}

	// If the scanner ended with an error, report it.
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "experienced error while scanning authentication file")
	}

	// Sort users list to search it efficiently later on.
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})

	return &FileAuthenticator{
		Users: users,
	}, nil
}

// AuthenticatePlain performs the actual authentication
// process by taking supplied credentials and attempting
// to find a matching entry the in-memory list taken from
// the authentication file.
func (f *FileAuthenticator) AuthenticatePlain(username string, password string) (int, error) {

	// Search in user list for user matching supplied name.
	i := sort.Search(len(f.Users), func(i int) bool {
		return f.Users[i].Name >= username
	})

	// If that user does not exist, throw an error.
	if !((i < len(f.Users)) && (f.Users[i].Name == username)) {
		return -1, ErrUnknownUser
	}

	// Check if passwords match.
	if err := comparePassword(f.Users[i].Password, password); err != nil {
		return -1, err
	}

	return f.Users[i].ID, nil
}
